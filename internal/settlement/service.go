package settlement

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"

	"keymarket/internal/access"
	"keymarket/internal/listing"
	settlementmetrics "keymarket/internal/settlement/metrics"
	id "keymarket/pkg/domain"
	dErrors "keymarket/pkg/domain-errors"
	audit "keymarket/pkg/platform/audit"
	"keymarket/pkg/requestcontext"
)

// Listings is the subset of the listing ledger the orchestrator drives.
type Listings interface {
	SettlePurchase(ctx context.Context, listingID id.ListingID, buyer id.Principal, paymentAmount uint64) (*listing.Listing, *listing.SettlementReceipt, error)
}

// Revenue is the subset of the revenue ledger the orchestrator drives.
type Revenue interface {
	RecordSale(ctx context.Context, seller id.Principal, sellerAmount, platformFee uint64) error
}

// Credentials is the subset of the access ledger the orchestrator drives.
type Credentials interface {
	Mint(ctx context.Context, req access.MintRequest) (*access.Credential, error)
}

// Receipt is returned to the buyer after a successful purchase.
type Receipt struct {
	ListingID    id.ListingID    `json:"listing_id"`
	AssetID      id.AssetID      `json:"asset_id"`
	CredentialID id.CredentialID `json:"credential_id"`
	Seller       id.Principal    `json:"seller"`
	Buyer        id.Principal    `json:"buyer"`
	Price        uint64          `json:"price"`
	PlatformFee  uint64          `json:"platform_fee"`
	SellerAmount uint64          `json:"seller_amount"`
	CompletedAt  time.Time       `json:"completed_at"`
}

// Service orchestrates a purchase across the three ledgers. It holds no state
// of its own; the listing deactivation inside SettlePurchase is the single
// point of contention, and everything after it runs on the winner's goroutine.
type Service struct {
	listings    Listings
	revenue     Revenue
	credentials Credentials
	events      audit.Store
	logger      *slog.Logger
	metrics     *settlementmetrics.Metrics
	tracer      trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics attaches the Prometheus collectors.
func WithMetrics(m *settlementmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(listings Listings, revenue Revenue, credentials Credentials, events audit.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		listings:    listings,
		revenue:     revenue,
		credentials: credentials,
		events:      events,
		logger:      logger,
		tracer:      otel.Tracer("keymarket/settlement"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Purchase settles a listing for the buyer. Steps run in a fixed order:
//
//  1. deactivate the listing and compute the fee split
//  2. credit seller earnings and the platform fee
//  3. mint the buyer's credential
//  4. append the purchase_completed event
//
// The first failing step aborts the purchase and its error is returned
// verbatim. There is no compensation: step 1 is the only step that can lose a
// race, and steps 2-4 operate on values already decided by it.
//
// The encrypted key is the asset key wrapped for the buyer; the orchestrator
// never inspects it and only a BLAKE2b fingerprint enters the event log.
func (s *Service) Purchase(ctx context.Context, listingID id.ListingID, buyer id.Principal, paymentAmount uint64, encryptedKey []byte) (*Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.Purchase", trace.WithAttributes(
		attribute.String("listing.id", listingID.String()),
		attribute.Int64("payment.amount", int64(paymentAmount)),
	))
	defer span.End()

	start := time.Now()
	receipt, err := s.purchase(ctx, listingID, buyer, paymentAmount, encryptedKey)
	if err != nil {
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
		if s.metrics != nil {
			s.metrics.PurchasesFailed.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("credential.id", receipt.CredentialID.String()))
	if s.metrics != nil {
		s.metrics.PurchasesCompleted.Inc()
		s.metrics.PurchaseDuration.Observe(time.Since(start).Seconds())
	}
	return receipt, nil
}

func (s *Service) purchase(ctx context.Context, listingID id.ListingID, buyer id.Principal, paymentAmount uint64, encryptedKey []byte) (*Receipt, error) {
	if buyer.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "buyer is required")
	}
	if len(encryptedKey) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "encrypted key is required")
	}

	l, split, err := s.listings.SettlePurchase(ctx, listingID, buyer, paymentAmount)
	if err != nil {
		return nil, err
	}

	if err := s.revenue.RecordSale(ctx, split.Seller, split.SellerAmount, split.PlatformFee); err != nil {
		return nil, err
	}

	cred, err := s.credentials.Mint(ctx, access.MintRequest{
		AssetID:         l.AssetID,
		Holder:          buyer,
		AccessType:      accessTypeFor(l.Policy.Kind),
		DurationDays:    l.Policy.DurationDays,
		EncryptedKey:    encryptedKey,
		SourceListingID: l.ID,
		Issuer:          l.Seller,
	})
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	fingerprint := blake2b.Sum256(encryptedKey)
	event := audit.Event{
		Action:         audit.EventPurchaseCompleted,
		Timestamp:      now,
		Actor:          buyer,
		Subject:        l.Seller,
		AssetID:        l.AssetID.String(),
		ListingID:      l.ID.String(),
		CredentialID:   cred.ID.String(),
		Amount:         split.Price,
		Fee:            split.PlatformFee,
		RequestID:      requestcontext.RequestID(ctx),
		KeyFingerprint: hex.EncodeToString(fingerprint[:]),
	}
	// Fail closed: a purchase that cannot be recorded did not happen as far
	// as the caller is concerned, even though the ledgers already moved.
	// The error surfaces the inconsistency instead of hiding it.
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "purchase settled but event append failed",
			"listing_id", l.ID,
			"credential_id", cred.ID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record purchase")
	}

	return &Receipt{
		ListingID:    l.ID,
		AssetID:      l.AssetID,
		CredentialID: cred.ID,
		Seller:       l.Seller,
		Buyer:        buyer,
		Price:        split.Price,
		PlatformFee:  split.PlatformFee,
		SellerAmount: split.SellerAmount,
		CompletedAt:  now,
	}, nil
}

func accessTypeFor(kind listing.PolicyKind) access.AccessType {
	switch kind {
	case listing.PolicyLimited:
		return access.AccessLimited
	case listing.PolicyTemporary:
		return access.AccessTemporary
	default:
		return access.AccessFull
	}
}
