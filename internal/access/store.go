package access

import (
	"context"

	id "keymarket/pkg/domain"
)

// Store persists credentials and maintains the per-holder index. Credentials
// are never physically deleted; revocation flips Active under the record
// lock via Execute.
type Store interface {
	Create(ctx context.Context, c *Credential) error
	FindByID(ctx context.Context, credentialID id.CredentialID) (*Credential, error)
	ListByHolder(ctx context.Context, holder id.Principal) ([]*Credential, error)
	Execute(ctx context.Context, credentialID id.CredentialID, validate func(*Credential) error, mutate func(*Credential)) (*Credential, error)
}
