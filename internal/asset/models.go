package asset

import (
	"time"

	id "keymarket/pkg/domain"
)

// Asset is the registry record for one digital asset.
//
// Invariants:
//   - ID is globally unique at mint time
//   - Owner is always a single principal (no co-ownership)
//   - Creator is immutable after mint
//
// ContentRef points at the off-ledger encrypted payload; the registry never
// dereferences it. Burning removes the record outright - dependent listings
// and credentials are NOT cascaded and must detect the missing asset
// themselves.
type Asset struct {
	ID         id.AssetID   `json:"id"`
	Owner      id.Principal `json:"owner"`
	Creator    id.Principal `json:"creator"`
	ContentRef string       `json:"content_ref"`
	CreatedAt  time.Time    `json:"created_at"`
}
