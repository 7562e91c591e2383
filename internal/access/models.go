package access

import (
	"time"

	id "keymarket/pkg/domain"
)

// AccessType mirrors the listing policy kind that produced the credential.
type AccessType string

const (
	AccessFull      AccessType = "full"
	AccessLimited   AccessType = "limited"
	AccessTemporary AccessType = "temporary"
)

// Credential is a record proving a principal's right to decrypt an asset,
// optionally time-bounded.
//
// State machine: Active(unexpired) -> Active(expired) is time-driven, not a
// stored transition; -> Revoked is explicit and one-way. There is no renew:
// reacquiring access requires a new credential from a new settlement.
//
// Revocation rights stay with the Issuer (the seller who granted access),
// not the current holder, even after a transfer.
type Credential struct {
	ID              id.CredentialID `json:"id"`
	AssetID         id.AssetID      `json:"asset_id"`
	Holder          id.Principal    `json:"holder"`
	AccessType      AccessType      `json:"access_type"`
	GrantedAt       time.Time       `json:"granted_at"`
	// ExpiresAt is nil for never-expiring (full) credentials.
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	EncryptedKey    []byte          `json:"-"`
	SourceListingID id.ListingID    `json:"source_listing_id"`
	Issuer          id.Principal    `json:"issuer"`
	Active          bool            `json:"active"`
}

// IsValid reports whether the credential grants access at the given instant:
// active, and either never-expiring or strictly before expiry.
func (c *Credential) IsValid(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.ExpiresAt == nil {
		return true
	}
	return now.Before(*c.ExpiresAt)
}
