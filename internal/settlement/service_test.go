package settlement

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"keymarket/internal/access"
	"keymarket/internal/listing"
	"keymarket/internal/revenue"
	id "keymarket/pkg/domain"
	dErrors "keymarket/pkg/domain-errors"
	audit "keymarket/pkg/platform/audit"
	"keymarket/pkg/testutil"
)

// The orchestrator is tested against the real ledger services over in-memory
// stores, so every cross-ledger effect of a purchase is observable.
type SettlementSuite struct {
	suite.Suite
	listings    *listing.Service
	revenue     *revenue.Service
	credentials *access.Service
	events      *audit.InMemoryStore
	service     *Service
	now         time.Time
}

func TestSettlementSuite(t *testing.T) {
	suite.Run(t, new(SettlementSuite))
}

func (s *SettlementSuite) SetupTest() {
	log := slog.New(slog.DiscardHandler)
	s.events = audit.NewInMemoryStore()
	s.listings = listing.NewService(listing.NewInMemoryStore(), s.events, log, 10)
	s.revenue = revenue.NewService(revenue.NewInMemoryStore(), s.events, log, "treasury")
	s.credentials = access.NewService(access.NewInMemoryStore(), s.events, log)
	s.service = NewService(s.listings, s.revenue, s.credentials, s.events, log)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *SettlementSuite) ctx(caller id.Principal) context.Context {
	return testutil.Context(s.T(), caller, s.now)
}

func (s *SettlementSuite) list(price uint64, policy listing.AccessPolicy) *listing.Listing {
	l, err := s.listings.List(s.ctx("alice"), id.NewAssetID(), "alice", price, policy, "standard terms")
	s.Require().NoError(err)
	return l
}

func (s *SettlementSuite) TestPurchase() {
	s.Run("moves value through all three ledgers", func() {
		l := s.list(100, listing.AccessPolicy{Kind: listing.PolicyFull})

		receipt, err := s.service.Purchase(s.ctx("bob"), l.ID, "bob", 100, []byte("wrapped-key"))
		s.Require().NoError(err)
		s.Equal(uint64(100), receipt.Price)
		s.Equal(uint64(10), receipt.PlatformFee)
		s.Equal(uint64(90), receipt.SellerAmount)

		// Listing deactivated.
		settled, err := s.listings.Get(s.ctx("bob"), l.ID)
		s.Require().NoError(err)
		s.False(settled.Active)

		// Seller credited, platform fee collected.
		balance, err := s.revenue.Balance(s.ctx("alice"), "alice")
		s.Require().NoError(err)
		s.Equal(uint64(90), balance)
		platform, err := s.revenue.PlatformBalance(s.ctx("treasury"))
		s.Require().NoError(err)
		s.Equal(uint64(10), platform)

		// Buyer holds a valid credential.
		cred, err := s.credentials.Get(s.ctx("bob"), receipt.CredentialID, "bob")
		s.Require().NoError(err)
		s.Equal(id.Principal("bob"), cred.Holder)
		s.Equal(id.Principal("alice"), cred.Issuer)
		s.Equal([]byte("wrapped-key"), cred.EncryptedKey)
		valid, err := s.credentials.CheckValid(s.ctx("anyone"), receipt.CredentialID)
		s.Require().NoError(err)
		s.True(valid)
	})

	s.Run("credential inherits the listing policy", func() {
		l := s.list(100, listing.AccessPolicy{Kind: listing.PolicyLimited, DurationDays: 30})

		receipt, err := s.service.Purchase(s.ctx("bob"), l.ID, "bob", 100, []byte("wrapped-key"))
		s.Require().NoError(err)

		cred, err := s.credentials.Get(s.ctx("bob"), receipt.CredentialID, "bob")
		s.Require().NoError(err)
		s.Equal(access.AccessLimited, cred.AccessType)
		s.Require().NotNil(cred.ExpiresAt)
		s.Equal(s.now.Add(30*24*time.Hour), *cred.ExpiresAt)
	})

	s.Run("records the completion event with the fee split", func() {
		l := s.list(100, listing.AccessPolicy{Kind: listing.PolicyFull})
		receipt, err := s.service.Purchase(s.ctx("bob"), l.ID, "bob", 100, []byte("wrapped-key"))
		s.Require().NoError(err)

		events, err := s.events.List(context.Background(), 0)
		s.Require().NoError(err)
		var completed *audit.Event
		for i := range events {
			if events[i].Action == audit.EventPurchaseCompleted && events[i].ListingID == l.ID.String() {
				completed = &events[i]
			}
		}
		s.Require().NotNil(completed)
		s.Equal(uint64(100), completed.Amount)
		s.Equal(uint64(10), completed.Fee)
		s.Equal(receipt.CredentialID.String(), completed.CredentialID)
		s.NotEmpty(completed.KeyFingerprint, "the key fingerprint is logged, never the key")
		s.NotContains(completed.KeyFingerprint, "wrapped-key")
	})

	s.Run("insufficient payment aborts before any ledger moves", func() {
		l := s.list(100, listing.AccessPolicy{Kind: listing.PolicyFull})

		_, err := s.service.Purchase(s.ctx("bob"), l.ID, "bob", 99, []byte("wrapped-key"))
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientPayment))

		still, err := s.listings.Get(s.ctx("bob"), l.ID)
		s.Require().NoError(err)
		s.True(still.Active)
		balance, err := s.revenue.Balance(s.ctx("alice"), "alice")
		s.Require().NoError(err)
		s.Zero(balance)
	})

	s.Run("missing encrypted key rejected", func() {
		l := s.list(100, listing.AccessPolicy{Kind: listing.PolicyFull})
		_, err := s.service.Purchase(s.ctx("bob"), l.ID, "bob", 100, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unknown listing", func() {
		_, err := s.service.Purchase(s.ctx("bob"), id.NewListingID(), "bob", 100, []byte("k"))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// TestConcurrentPurchase drives many buyers at one listing: exactly one
// purchase settles, exactly one credential exists, and the seller is credited
// exactly once.
func (s *SettlementSuite) TestConcurrentPurchase() {
	l := s.list(100, listing.AccessPolicy{Kind: listing.PolicyFull})
	const buyers = 50

	var wg sync.WaitGroup
	var winners, losers atomic.Int32
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buyer := id.Principal("buyer")
			_, err := s.service.Purchase(s.ctx(buyer), l.ID, buyer, 100, []byte("wrapped-key"))
			switch {
			case err == nil:
				winners.Add(1)
			case dErrors.HasCode(err, dErrors.CodeInactive):
				losers.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), winners.Load())
	s.Equal(int32(buyers-1), losers.Load())

	balance, err := s.revenue.Balance(s.ctx("alice"), "alice")
	s.Require().NoError(err)
	s.Equal(uint64(90), balance, "seller credited exactly once")

	held, err := s.credentials.ListByHolder(s.ctx("buyer"), "buyer")
	s.Require().NoError(err)
	s.Len(held, 1, "exactly one credential minted")
}

// failingStore rejects every append once armed, to exercise the fail-closed
// completion event.
type failingStore struct {
	audit.Store
	fail atomic.Bool
}

func (f *failingStore) Append(ctx context.Context, event audit.Event) error {
	if f.fail.Load() && event.Action == audit.EventPurchaseCompleted {
		return errors.New("event log unavailable")
	}
	return f.Store.Append(ctx, event)
}

func (s *SettlementSuite) TestPurchaseFailsClosedOnEventLog() {
	log := slog.New(slog.DiscardHandler)
	events := &failingStore{Store: audit.NewInMemoryStore()}
	service := NewService(s.listings, s.revenue, s.credentials, events, log)

	l := s.list(100, listing.AccessPolicy{Kind: listing.PolicyFull})
	events.fail.Store(true)

	_, err := service.Purchase(s.ctx("bob"), l.ID, "bob", 100, []byte("wrapped-key"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
