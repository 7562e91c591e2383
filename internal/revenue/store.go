// Package revenue implements the marketplace's third ledger: per-seller
// withdrawable balances and the platform's aggregate fee balance.
package revenue

import (
	"context"

	id "keymarket/pkg/domain"
)

// Store persists revenue balances. Accounts are created implicitly on first
// credit and never destroyed; balances never go negative.
//
// Credit applies both halves of a sale atomically - a purchase must never
// credit the seller without crediting the platform, or vice versa.
// WithdrawAll and WithdrawPlatform serialize against Credit per account so
// concurrent record/withdraw cannot lose updates.
type Store interface {
	Credit(ctx context.Context, seller id.Principal, sellerAmount, platformFee uint64) error
	Balance(ctx context.Context, principal id.Principal) (uint64, error)
	// WithdrawAll zeroes the balance and returns the amount withdrawn,
	// which may be zero.
	WithdrawAll(ctx context.Context, principal id.Principal) (uint64, error)
	PlatformBalance(ctx context.Context) (uint64, error)
	// WithdrawPlatform debits exactly amount from the platform balance,
	// returning sentinel.ErrInvalidState when the balance is short.
	WithdrawPlatform(ctx context.Context, amount uint64) error
}
