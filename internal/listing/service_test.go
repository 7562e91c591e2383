package listing

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "keymarket/pkg/domain"
	dErrors "keymarket/pkg/domain-errors"
	audit "keymarket/pkg/platform/audit"
	"keymarket/pkg/testutil"
)

type ListingServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	events  *audit.InMemoryStore
	service *Service
	now     time.Time
}

func TestListingServiceSuite(t *testing.T) {
	suite.Run(t, new(ListingServiceSuite))
}

func (s *ListingServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.events = audit.NewInMemoryStore()
	s.service = NewService(s.store, s.events, slog.New(slog.DiscardHandler), 10)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *ListingServiceSuite) ctx(caller id.Principal) context.Context {
	return testutil.Context(s.T(), caller, s.now)
}

func (s *ListingServiceSuite) createListing(seller id.Principal, price uint64) *Listing {
	l, err := s.service.List(s.ctx(seller), id.NewAssetID(), seller, price, AccessPolicy{Kind: PolicyFull}, "standard terms")
	s.Require().NoError(err)
	return l
}

// =============================================================================
// List Tests
// =============================================================================

func (s *ListingServiceSuite) TestList() {
	s.Run("creates an active listing", func() {
		l := s.createListing("alice", 100)
		s.True(l.Active)
		s.Equal(uint64(100), l.Price)
		s.Equal(s.now, l.CreatedAt)
	})

	s.Run("zero price rejected", func() {
		_, err := s.service.List(s.ctx("alice"), id.NewAssetID(), "alice", 0, AccessPolicy{Kind: PolicyFull}, "")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("price beyond the storage bound rejected", func() {
		_, err := s.service.List(s.ctx("alice"), id.NewAssetID(), "alice", MaxPrice+1, AccessPolicy{Kind: PolicyFull}, "")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

		l, err := s.service.List(s.ctx("alice"), id.NewAssetID(), "alice", MaxPrice, AccessPolicy{Kind: PolicyFull}, "")
		s.Require().NoError(err)
		s.Equal(MaxPrice, l.Price)
	})

	s.Run("invalid policy rejected", func() {
		_, err := s.service.List(s.ctx("alice"), id.NewAssetID(), "alice", 100, AccessPolicy{Kind: PolicyLimited}, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidPolicy))
	})

	s.Run("emits listing_created", func() {
		l := s.createListing("alice", 250)
		events, err := s.events.List(context.Background(), 0)
		s.Require().NoError(err)
		last := events[len(events)-1]
		s.Equal(audit.EventListingCreated, last.Action)
		s.Equal(l.ID.String(), last.ListingID)
		s.Equal(uint64(250), last.Amount)
	})
}

// =============================================================================
// Update / Delist Tests
// =============================================================================

func (s *ListingServiceSuite) TestUpdate() {
	s.Run("seller can change price and terms", func() {
		l := s.createListing("alice", 100)
		updated, err := s.service.Update(s.ctx("alice"), l.ID, "alice", 200, "new terms")
		s.Require().NoError(err)
		s.Equal(uint64(200), updated.Price)
		s.Equal("new terms", updated.Terms)
		s.Equal(l.CreatedAt, updated.CreatedAt)
	})

	s.Run("non-seller rejected", func() {
		l := s.createListing("alice", 100)
		_, err := s.service.Update(s.ctx("mallory"), l.ID, "mallory", 1, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotSeller))
	})

	s.Run("inactive listing immutable", func() {
		l := s.createListing("alice", 100)
		_, err := s.service.Delist(s.ctx("alice"), l.ID, "alice")
		s.Require().NoError(err)
		_, err = s.service.Update(s.ctx("alice"), l.ID, "alice", 200, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInactive))
	})

	s.Run("price beyond the storage bound rejected", func() {
		l := s.createListing("alice", 100)
		_, err := s.service.Update(s.ctx("alice"), l.ID, "alice", MaxPrice+1, "")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unknown listing", func() {
		_, err := s.service.Update(s.ctx("alice"), id.NewListingID(), "alice", 200, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ListingServiceSuite) TestDelist() {
	s.Run("deactivates and disappears from browse", func() {
		l := s.createListing("alice", 100)
		delisted, err := s.service.Delist(s.ctx("alice"), l.ID, "alice")
		s.Require().NoError(err)
		s.False(delisted.Active)

		active, err := s.service.Browse(s.ctx("anyone"))
		s.Require().NoError(err)
		for _, a := range active {
			s.NotEqual(l.ID, a.ID)
		}
	})

	s.Run("second delist rejected", func() {
		l := s.createListing("alice", 100)
		_, err := s.service.Delist(s.ctx("alice"), l.ID, "alice")
		s.Require().NoError(err)
		_, err = s.service.Delist(s.ctx("alice"), l.ID, "alice")
		s.True(dErrors.HasCode(err, dErrors.CodeInactive))
	})

	s.Run("non-seller rejected", func() {
		l := s.createListing("alice", 100)
		_, err := s.service.Delist(s.ctx("mallory"), l.ID, "mallory")
		s.True(dErrors.HasCode(err, dErrors.CodeNotSeller))
	})
}

// =============================================================================
// SettlePurchase Tests
// =============================================================================

func (s *ListingServiceSuite) TestSettlePurchase() {
	s.Run("deactivates and splits the price", func() {
		l := s.createListing("alice", 100)
		settled, receipt, err := s.service.SettlePurchase(s.ctx("bob"), l.ID, "bob", 100)
		s.Require().NoError(err)
		s.False(settled.Active)
		s.Equal(uint64(10), receipt.PlatformFee)
		s.Equal(uint64(90), receipt.SellerAmount)
		s.Equal(id.Principal("alice"), receipt.Seller)
	})

	s.Run("overpayment splits only the price", func() {
		l := s.createListing("alice", 100)
		_, receipt, err := s.service.SettlePurchase(s.ctx("bob"), l.ID, "bob", 150)
		s.Require().NoError(err)
		s.Equal(uint64(100), receipt.PlatformFee+receipt.SellerAmount)
	})

	s.Run("insufficient payment leaves listing active", func() {
		l := s.createListing("alice", 100)
		_, _, err := s.service.SettlePurchase(s.ctx("bob"), l.ID, "bob", 99)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientPayment))

		got, err := s.service.Get(s.ctx("bob"), l.ID)
		s.Require().NoError(err)
		s.True(got.Active)
	})

	s.Run("settled listing cannot be purchased again", func() {
		l := s.createListing("alice", 100)
		_, _, err := s.service.SettlePurchase(s.ctx("bob"), l.ID, "bob", 100)
		s.Require().NoError(err)
		_, _, err = s.service.SettlePurchase(s.ctx("carol"), l.ID, "carol", 100)
		s.True(dErrors.HasCode(err, dErrors.CodeInactive))
	})

	s.Run("delisted listing cannot be purchased", func() {
		l := s.createListing("alice", 100)
		_, err := s.service.Delist(s.ctx("alice"), l.ID, "alice")
		s.Require().NoError(err)
		_, _, err = s.service.SettlePurchase(s.ctx("bob"), l.ID, "bob", 100)
		s.True(dErrors.HasCode(err, dErrors.CodeInactive))
	})
}

// TestConcurrentSettlement verifies the compare-and-swap on the Active flag:
// of many concurrent attempts against one listing, exactly one settles.
func (s *ListingServiceSuite) TestConcurrentSettlement() {
	l := s.createListing("alice", 100)
	const attempts = 50

	var wg sync.WaitGroup
	var won, lost atomic.Int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.service.SettlePurchase(s.ctx("buyer"), l.ID, "buyer", 100)
			switch {
			case err == nil:
				won.Add(1)
			case dErrors.HasCode(err, dErrors.CodeInactive):
				lost.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), won.Load(), "exactly one settlement should win")
	s.Equal(int32(attempts-1), lost.Load(), "all others should observe an inactive listing")
}
