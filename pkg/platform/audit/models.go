package audit

import (
	"time"

	id "keymarket/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with financial significance. Every
	// value movement in the marketplace lands here: settlements, sale
	// credits, withdrawals, credential grants. These require tamper-proof
	// storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to access-control monitoring.
	// Examples: credential revocations.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine registry activity useful for
	// debugging and marketplace analytics. These can be sampled or
	// aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture every mutating registry
// operation. The append-only event sequence is the marketplace's only durable
// history; primary stores are free to compact or rebuild from it.
//
// Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time

	// Actor is the principal that performed the operation.
	Actor id.Principal
	// Subject is the principal affected when different from Actor
	// (the buyer on a settlement, the new holder on a transfer).
	Subject id.Principal

	Action string

	// Cross-registry references carried as plain strings so the event log
	// never depends on registry internals.
	AssetID      string
	ListingID    string
	CredentialID string

	// Value movement, in the smallest currency unit. Amount is the full
	// price on settlements and the moved amount on withdrawals; Fee is the
	// platform cut where one applies.
	Amount uint64
	Fee    uint64

	Reason    string
	RequestID string

	// KeyFingerprint is a BLAKE2b-256 hash of the encrypted key blob
	// attached to a credential. The key itself never enters the log.
	KeyFingerprint string
}

// Action names for every mutating operation across the four ledgers and the
// settlement orchestrator.
const (
	EventAssetMinted      = "asset_minted"
	EventAssetTransferred = "asset_transferred"
	EventAssetBurned      = "asset_burned"

	EventListingCreated  = "listing_created"
	EventListingUpdated  = "listing_updated"
	EventListingDelisted = "listing_delisted"

	EventPurchaseCompleted = "purchase_completed"

	EventAccessGranted     = "access_granted"
	EventAccessRevoked     = "access_revoked"
	EventAccessTransferred = "access_transferred"

	EventSaleRecorded          = "sale_recorded"
	EventEarningsWithdrawn     = "earnings_withdrawn"
	EventPlatformFeesWithdrawn = "platform_fees_withdrawn"
)

// eventCategories maps each action to its category.
// Compliance: value movement, requires tamper-proof storage.
// Security: access-control changes, feeds alerting.
// Operations: routine registry activity, can be sampled.
var eventCategories = map[string]EventCategory{
	EventPurchaseCompleted:     CategoryCompliance,
	EventSaleRecorded:          CategoryCompliance,
	EventEarningsWithdrawn:     CategoryCompliance,
	EventPlatformFeesWithdrawn: CategoryCompliance,
	EventAccessGranted:         CategoryCompliance,

	EventAccessRevoked: CategorySecurity,

	EventAssetMinted:       CategoryOperations,
	EventAssetTransferred:  CategoryOperations,
	EventAssetBurned:       CategoryOperations,
	EventListingCreated:    CategoryOperations,
	EventListingUpdated:    CategoryOperations,
	EventListingDelisted:   CategoryOperations,
	EventAccessTransferred: CategoryOperations,
}

// CategoryOf returns the category for an action, defaulting to operations for
// unknown actions so nothing is silently dropped.
func CategoryOf(action string) EventCategory {
	if cat, ok := eventCategories[action]; ok {
		return cat
	}
	return CategoryOperations
}
