package listing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "keymarket/pkg/domain"
	"keymarket/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *InMemoryStoreSuite) newListing(seller id.Principal, createdAt time.Time) *Listing {
	return &Listing{
		ID:        id.NewListingID(),
		AssetID:   id.NewAssetID(),
		Seller:    seller,
		Price:     100,
		Policy:    AccessPolicy{Kind: PolicyFull},
		Active:    true,
		CreatedAt: createdAt,
	}
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	l := s.newListing("alice", time.Now())

	s.Run("round trips", func() {
		s.Require().NoError(s.store.Create(ctx, l))
		found, err := s.store.FindByID(ctx, l.ID)
		s.Require().NoError(err)
		s.Equal(l.ID, found.ID)
	})

	s.Run("duplicate id conflicts", func() {
		s.ErrorIs(s.store.Create(ctx, l), sentinel.ErrConflict)
	})

	s.Run("missing id not found", func() {
		_, err := s.store.FindByID(ctx, id.NewListingID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("find returns a copy", func() {
		found, err := s.store.FindByID(ctx, l.ID)
		s.Require().NoError(err)
		found.Price = 999

		again, err := s.store.FindByID(ctx, l.ID)
		s.Require().NoError(err)
		s.Equal(uint64(100), again.Price)
	})
}

func (s *InMemoryStoreSuite) TestListActive() {
	ctx := context.Background()
	base := time.Now()
	first := s.newListing("alice", base)
	second := s.newListing("alice", base.Add(time.Second))
	second.Active = false
	third := s.newListing("bob", base.Add(2*time.Second))
	for _, l := range []*Listing{first, second, third} {
		s.Require().NoError(s.store.Create(ctx, l))
	}

	active, err := s.store.ListActive(ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal(first.ID, active[0].ID, "ordered by creation time")
	s.Equal(third.ID, active[1].ID)
}

func (s *InMemoryStoreSuite) TestExecute() {
	ctx := context.Background()
	l := s.newListing("alice", time.Now())
	s.Require().NoError(s.store.Create(ctx, l))

	s.Run("validation failure leaves record untouched", func() {
		_, err := s.store.Execute(ctx, l.ID,
			func(*Listing) error { return sentinel.ErrInvalidState },
			func(l *Listing) { l.Active = false },
		)
		s.ErrorIs(err, sentinel.ErrInvalidState)

		found, err := s.store.FindByID(ctx, l.ID)
		s.Require().NoError(err)
		s.True(found.Active)
	})

	s.Run("mutation persists", func() {
		updated, err := s.store.Execute(ctx, l.ID,
			func(*Listing) error { return nil },
			func(l *Listing) { l.Active = false },
		)
		s.Require().NoError(err)
		s.False(updated.Active)

		found, err := s.store.FindByID(ctx, l.ID)
		s.Require().NoError(err)
		s.False(found.Active)
	})

	s.Run("missing listing not found", func() {
		_, err := s.store.Execute(ctx, id.NewListingID(),
			func(*Listing) error { return nil },
			func(*Listing) {},
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
