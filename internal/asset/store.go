package asset

import (
	"context"

	id "keymarket/pkg/domain"
)

// Store persists asset records. Implementations return pkg/platform/sentinel
// errors for infrastructure facts; the service translates them into domain
// errors.
//
// Execute runs validate then mutate while holding the record's lock (store
// mutex in memory, SELECT ... FOR UPDATE in Postgres) so ownership checks and
// owner changes are atomic per record.
type Store interface {
	Create(ctx context.Context, a *Asset) error
	FindByID(ctx context.Context, assetID id.AssetID) (*Asset, error)
	ListByOwner(ctx context.Context, owner id.Principal) ([]*Asset, error)
	Execute(ctx context.Context, assetID id.AssetID, validate func(*Asset) error, mutate func(*Asset)) (*Asset, error)
	// Remove deletes the record if validate passes, under the same lock.
	Remove(ctx context.Context, assetID id.AssetID, validate func(*Asset) error) error
}
