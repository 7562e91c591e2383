package listing

import (
	"math"
	"time"

	id "keymarket/pkg/domain"
	dErrors "keymarket/pkg/domain-errors"
)

// MaxPrice bounds listing prices to what the bigint price column can store,
// so the memory and Postgres stores accept the same inputs.
const MaxPrice uint64 = math.MaxInt64

// PolicyKind enumerates the recognized access policies a listing can sell.
type PolicyKind string

const (
	// PolicyFull grants a never-expiring credential.
	PolicyFull PolicyKind = "full"
	// PolicyLimited grants a credential bounded by DurationDays.
	PolicyLimited PolicyKind = "limited"
	// PolicyTemporary grants a short-lived credential bounded by DurationDays.
	PolicyTemporary PolicyKind = "temporary"
)

// AccessPolicy is the access grant a purchase of the listing produces.
type AccessPolicy struct {
	Kind         PolicyKind `json:"kind"`
	DurationDays uint32     `json:"duration_days,omitempty"`
}

// Validate enforces the policy invariants: the kind must be recognized, and
// time-bounded kinds must carry a positive duration.
func (p AccessPolicy) Validate() error {
	switch p.Kind {
	case PolicyFull:
		return nil
	case PolicyLimited, PolicyTemporary:
		if p.DurationDays == 0 {
			return dErrors.New(dErrors.CodeInvalidPolicy, "time-bounded policy requires a positive duration")
		}
		return nil
	default:
		return dErrors.New(dErrors.CodeInvalidPolicy, "unrecognized access policy")
	}
}

// Expiring reports whether credentials minted from this policy expire.
func (p AccessPolicy) Expiring() bool {
	return p.Kind != PolicyFull
}

// Listing is a standing offer to sell access to an asset at a fixed price.
//
// Lifecycle: created active; price/terms mutable by the seller while active;
// deactivated exactly once by either Delist or SettlePurchase, after which
// the record is immutable. The Active flag is the linearization point for the
// whole marketplace: the store's Execute callback turns the deactivation into
// a compare-and-swap, so two concurrent purchases resolve to exactly one
// success.
//
// The ledger does not verify the seller owns the underlying asset; that is
// the caller's contract (query the asset registry first).
type Listing struct {
	ID        id.ListingID `json:"id"`
	AssetID   id.AssetID   `json:"asset_id"`
	Seller    id.Principal `json:"seller"`
	Price     uint64       `json:"price"`
	Policy    AccessPolicy `json:"policy"`
	Terms     string       `json:"terms"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"created_at"`
}

// SettlementReceipt is the fee split computed by SettlePurchase.
// PlatformFee + SellerAmount always equals the listing price; any overpayment
// beyond the price is the caller's to refund.
type SettlementReceipt struct {
	ListingID    id.ListingID `json:"listing_id"`
	Seller       id.Principal `json:"seller"`
	Price        uint64       `json:"price"`
	PlatformFee  uint64       `json:"platform_fee"`
	SellerAmount uint64       `json:"seller_amount"`
}

// SplitFee computes the integer fee split: fee = floor(price*feePercent/100),
// seller gets the remainder. No value is created or destroyed.
//
// The product price*feePercent can exceed 64 bits for smallest-unit prices,
// so the division is split: with price = 100q+r, floor(price*f/100) equals
// q*f + floor(r*f/100) exactly, and both terms stay in range for f in [0,100].
func SplitFee(price uint64, feePercent int) (platformFee, sellerAmount uint64) {
	f := uint64(feePercent)
	platformFee = price/100*f + price%100*f/100
	sellerAmount = price - platformFee
	return platformFee, sellerAmount
}
