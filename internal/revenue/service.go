package revenue

import (
	"context"
	"errors"
	"log/slog"

	revenuemetrics "keymarket/internal/revenue/metrics"
	id "keymarket/pkg/domain"
	dErrors "keymarket/pkg/domain-errors"
	audit "keymarket/pkg/platform/audit"
	"keymarket/pkg/platform/sentinel"
	"keymarket/pkg/requestcontext"
)

// Service implements the revenue ledger. RecordSale performs no
// deduplication: the ledger cannot know about listings, so exactly-once
// invocation is the settlement orchestrator's responsibility, and duplicate
// calls double-credit.
type Service struct {
	store        Store
	events       audit.Store
	logger       *slog.Logger
	metrics      *revenuemetrics.Metrics
	feeRecipient id.Principal
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics attaches the Prometheus collectors.
func WithMetrics(m *revenuemetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService builds the ledger. feeRecipient is the only principal allowed
// to withdraw platform fees.
func NewService(store Store, events audit.Store, logger *slog.Logger, feeRecipient id.Principal, opts ...Option) *Service {
	s := &Service{
		store:        store,
		events:       events,
		logger:       logger,
		feeRecipient: feeRecipient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordSale unconditionally credits the seller and the platform account.
// Both credits land atomically in the store.
func (s *Service) RecordSale(ctx context.Context, seller id.Principal, sellerAmount, platformFee uint64) error {
	if seller.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "seller is required")
	}
	if err := s.store.Credit(ctx, seller, sellerAmount, platformFee); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record sale")
	}

	s.emit(ctx, audit.Event{
		Action:  audit.EventSaleRecorded,
		Subject: seller,
		Amount:  sellerAmount,
		Fee:     platformFee,
	})
	if s.metrics != nil {
		s.metrics.SalesRecorded.Inc()
		s.metrics.SellerAmountTotal.Add(float64(sellerAmount))
		s.metrics.PlatformFeeTotal.Add(float64(platformFee))
	}
	return nil
}

// Balance returns a principal's withdrawable balance.
func (s *Service) Balance(ctx context.Context, principal id.Principal) (uint64, error) {
	balance, err := s.store.Balance(ctx, principal)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query balance")
	}
	return balance, nil
}

// Withdraw zeroes the caller's balance and returns the withdrawn amount for
// the caller to disburse. All-or-nothing: there is no partial withdrawal, so
// the ledger never tracks pending amounts. A zero balance is NoEarnings.
func (s *Service) Withdraw(ctx context.Context, principal id.Principal) (uint64, error) {
	if principal.IsZero() {
		return 0, dErrors.New(dErrors.CodeBadRequest, "principal is required")
	}
	amount, err := s.store.WithdrawAll(ctx, principal)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to withdraw earnings")
	}
	if amount == 0 {
		return 0, dErrors.New(dErrors.CodeNoEarnings, "no earnings to withdraw")
	}

	s.emit(ctx, audit.Event{
		Action: audit.EventEarningsWithdrawn,
		Actor:  principal,
		Amount: amount,
	})
	if s.metrics != nil {
		s.metrics.EarningsWithdrawals.Inc()
	}
	return amount, nil
}

// PlatformBalance returns the aggregate fee balance.
func (s *Service) PlatformBalance(ctx context.Context) (uint64, error) {
	balance, err := s.store.PlatformBalance(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query platform balance")
	}
	return balance, nil
}

// WithdrawPlatformFees debits exactly amount from the fee balance. Unlike the
// per-seller path, partial withdrawal is allowed. Only the configured fee
// recipient may call it.
func (s *Service) WithdrawPlatformFees(ctx context.Context, caller id.Principal, amount uint64) error {
	if s.feeRecipient.IsZero() || caller != s.feeRecipient {
		return dErrors.New(dErrors.CodeNotAuthorized, "caller is not the fee recipient")
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "amount must be at least 1")
	}
	if err := s.store.WithdrawPlatform(ctx, amount); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodeInsufficientBalance, "amount exceeds platform fee balance")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to withdraw platform fees")
	}

	s.emit(ctx, audit.Event{
		Action: audit.EventPlatformFeesWithdrawn,
		Actor:  caller,
		Amount: amount,
	})
	if s.metrics != nil {
		s.metrics.PlatformWithdrawals.Inc()
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to append audit event",
			"action", event.Action,
			"error", err,
		)
	}
}
