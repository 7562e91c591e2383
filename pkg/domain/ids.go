// Package domain holds the typed identifiers shared across registries.
//
// Each registry references records in other registries by identifier only,
// never by shared mutable structure. Distinct UUID new-types keep those
// references from being mixed up at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "keymarket/pkg/domain-errors"
)

// AssetID identifies an asset in the asset registry.
type AssetID uuid.UUID

// ListingID identifies a sale offer in the listing ledger.
type ListingID uuid.UUID

// CredentialID identifies an issued access credential.
type CredentialID uuid.UUID

// Principal is an opaque identifier for an actor: buyer, seller, or the
// platform itself. In deployments backed by a chain this is a wallet address;
// the core never interprets it beyond equality.
type Principal string

func (p Principal) IsZero() bool { return p == "" }

func (id AssetID) String() string      { return uuid.UUID(id).String() }
func (id ListingID) String() string    { return uuid.UUID(id).String() }
func (id CredentialID) String() string { return uuid.UUID(id).String() }

func (id AssetID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ListingID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// The identifiers travel through JSON and log fields as canonical UUID
// strings, not as raw byte arrays.
func (id AssetID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id ListingID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id CredentialID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *AssetID) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*id = AssetID(parsed)
	return nil
}

func (id *ListingID) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*id = ListingID(parsed)
	return nil
}

func (id *CredentialID) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*id = CredentialID(parsed)
	return nil
}

// NewAssetID allocates a fresh asset identifier.
func NewAssetID() AssetID { return AssetID(uuid.New()) }

// NewListingID allocates a fresh listing identifier.
func NewListingID() ListingID { return ListingID(uuid.New()) }

// NewCredentialID allocates a fresh credential identifier.
func NewCredentialID() CredentialID { return CredentialID(uuid.New()) }

func parseUUID(raw, kind string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, kind+" id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, kind+" id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, kind+" id cannot be the nil UUID")
	}
	return parsed, nil
}

// ParseAssetID validates and converts a raw string into an AssetID.
func ParseAssetID(raw string) (AssetID, error) {
	parsed, err := parseUUID(raw, "asset")
	if err != nil {
		return AssetID{}, err
	}
	return AssetID(parsed), nil
}

// ParseListingID validates and converts a raw string into a ListingID.
func ParseListingID(raw string) (ListingID, error) {
	parsed, err := parseUUID(raw, "listing")
	if err != nil {
		return ListingID{}, err
	}
	return ListingID(parsed), nil
}

// ParseCredentialID validates and converts a raw string into a CredentialID.
func ParseCredentialID(raw string) (CredentialID, error) {
	parsed, err := parseUUID(raw, "credential")
	if err != nil {
		return CredentialID{}, err
	}
	return CredentialID(parsed), nil
}

// ParsePrincipal validates a raw principal string. Principals are opaque but
// must be non-empty and free of surrounding whitespace.
func ParsePrincipal(raw string) (Principal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "principal is required")
	}
	return Principal(trimmed), nil
}
