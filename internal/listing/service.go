package listing

import (
	"context"
	"errors"
	"log/slog"

	listingmetrics "keymarket/internal/listing/metrics"
	id "keymarket/pkg/domain"
	dErrors "keymarket/pkg/domain-errors"
	audit "keymarket/pkg/platform/audit"
	"keymarket/pkg/platform/sentinel"
	"keymarket/pkg/requestcontext"
)

// Service implements the listing ledger: create, update, delist, and the
// settlement half of a purchase. The fee percentage is fixed at construction
// from configuration and queryable; it is never scattered as a literal.
type Service struct {
	store      Store
	events     audit.Store
	logger     *slog.Logger
	metrics    *listingmetrics.Metrics
	feePercent int
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics attaches the Prometheus collectors.
func WithMetrics(m *listingmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, events audit.Store, logger *slog.Logger, feePercent int, opts ...Option) *Service {
	if feePercent < 0 || feePercent > 100 {
		feePercent = 0
	}
	s := &Service{
		store:      store,
		events:     events,
		logger:     logger,
		feePercent: feePercent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FeePercent returns the platform's configured cut of each sale.
func (s *Service) FeePercent() int { return s.feePercent }

// List creates an active listing. Zero-price listings are rejected here: the
// settlement math would make them free auto-grants, and the ledger treats
// that ambiguity as a caller error rather than a product feature.
//
// Asset ownership is deliberately NOT verified; sellers list access rights,
// and the caller contract is to query the asset registry first.
func (s *Service) List(ctx context.Context, assetID id.AssetID, seller id.Principal, price uint64, policy AccessPolicy, terms string) (*Listing, error) {
	if seller.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "seller is required")
	}
	if assetID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "asset id is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if price == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "price must be at least 1")
	}
	if price > MaxPrice {
		return nil, dErrors.New(dErrors.CodeBadRequest, "price exceeds the maximum")
	}

	l := &Listing{
		ID:        id.NewListingID(),
		AssetID:   assetID,
		Seller:    seller,
		Price:     price,
		Policy:    policy,
		Terms:     terms,
		Active:    true,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, l); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create listing")
	}

	s.emit(ctx, audit.Event{
		Action:    audit.EventListingCreated,
		Actor:     seller,
		AssetID:   assetID.String(),
		ListingID: l.ID.String(),
		Amount:    price,
	})
	if s.metrics != nil {
		s.metrics.ListingsCreated.Inc()
	}
	return l, nil
}

// Get returns the listing record.
func (s *Service) Get(ctx context.Context, listingID id.ListingID) (*Listing, error) {
	l, err := s.store.FindByID(ctx, listingID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load listing")
	}
	return l, nil
}

// Browse enumerates all currently purchasable listings.
func (s *Service) Browse(ctx context.Context) ([]*Listing, error) {
	listings, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to browse listings")
	}
	return listings, nil
}

// ListBySeller enumerates a seller's listings, active or not.
func (s *Service) ListBySeller(ctx context.Context, seller id.Principal) ([]*Listing, error) {
	listings, err := s.store.ListBySeller(ctx, seller)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list seller listings")
	}
	return listings, nil
}

// Update mutates price and terms in place. Only the seller may update, and
// only while the listing is active. CreatedAt is not reset.
func (s *Service) Update(ctx context.Context, listingID id.ListingID, caller id.Principal, newPrice uint64, newTerms string) (*Listing, error) {
	if newPrice == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "price must be at least 1")
	}
	if newPrice > MaxPrice {
		return nil, dErrors.New(dErrors.CodeBadRequest, "price exceeds the maximum")
	}
	l, err := s.store.Execute(ctx, listingID,
		func(l *Listing) error {
			if l.Seller != caller {
				return dErrors.New(dErrors.CodeNotSeller, "caller is not the listing seller")
			}
			if !l.Active {
				return dErrors.New(dErrors.CodeInactive, "listing is no longer active")
			}
			return nil
		},
		func(l *Listing) {
			l.Price = newPrice
			l.Terms = newTerms
		},
	)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to update listing")
	}

	s.emit(ctx, audit.Event{
		Action:    audit.EventListingUpdated,
		Actor:     caller,
		ListingID: listingID.String(),
		Amount:    newPrice,
	})
	return l, nil
}

// Delist deactivates the listing. A second delist is rejected with Inactive -
// a double-delist is a caller error, not an idempotent no-op.
func (s *Service) Delist(ctx context.Context, listingID id.ListingID, caller id.Principal) (*Listing, error) {
	l, err := s.store.Execute(ctx, listingID,
		func(l *Listing) error {
			if l.Seller != caller {
				return dErrors.New(dErrors.CodeNotSeller, "caller is not the listing seller")
			}
			if !l.Active {
				return dErrors.New(dErrors.CodeInactive, "listing is no longer active")
			}
			return nil
		},
		func(l *Listing) {
			l.Active = false
		},
	)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to delist listing")
	}

	s.emit(ctx, audit.Event{
		Action:    audit.EventListingDelisted,
		Actor:     caller,
		ListingID: listingID.String(),
	})
	if s.metrics != nil {
		s.metrics.ListingsDelisted.Inc()
	}
	return l, nil
}

// SettlePurchase validates the payment, deactivates the listing exactly once,
// and returns the fee split. The Inactive check inside Execute makes the
// deactivation a compare-and-swap on the Active flag: of two concurrent
// settlements one succeeds and the other gets Inactive.
//
// Only the price moves through the ledgers; overpayment beyond the price is
// the caller's responsibility to refund.
func (s *Service) SettlePurchase(ctx context.Context, listingID id.ListingID, buyer id.Principal, paymentAmount uint64) (*Listing, *SettlementReceipt, error) {
	if buyer.IsZero() {
		return nil, nil, dErrors.New(dErrors.CodeBadRequest, "buyer is required")
	}

	var receipt SettlementReceipt
	l, err := s.store.Execute(ctx, listingID,
		func(l *Listing) error {
			if !l.Active {
				return dErrors.New(dErrors.CodeInactive, "listing already sold or delisted")
			}
			if paymentAmount < l.Price {
				return dErrors.New(dErrors.CodeInsufficientPayment, "payment is below the listing price")
			}
			return nil
		},
		func(l *Listing) {
			l.Active = false
			platformFee, sellerAmount := SplitFee(l.Price, s.feePercent)
			receipt = SettlementReceipt{
				ListingID:    l.ID,
				Seller:       l.Seller,
				Price:        l.Price,
				PlatformFee:  platformFee,
				SellerAmount: sellerAmount,
			}
		},
	)
	if err != nil {
		return nil, nil, wrapStoreErr(err, "failed to settle listing")
	}

	if s.metrics != nil {
		s.metrics.ListingsSettled.Inc()
	}
	return l, &receipt, nil
}

// emit appends an operations event, logging failures rather than unwinding
// committed mutations. The settlement event itself is emitted by the
// purchase orchestrator, fail-closed.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to append audit event",
			"action", event.Action,
			"listing_id", event.ListingID,
			"error", err,
		)
	}
}

func wrapStoreErr(err error, message string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "listing not found")
	default:
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, message)
	}
}
