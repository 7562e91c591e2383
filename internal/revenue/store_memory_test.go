package revenue

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/suite"

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

func (s *InMemoryStoreSuite) TestCredit() {
	ctx := context.Background()

	s.Run("credits both balances", func() {
		s.Require().NoError(s.store.Credit(ctx, "alice", 90, 10))

		balance, err := s.store.Balance(ctx, "alice")
		s.Require().NoError(err)
		s.Equal(uint64(90), balance)

		platform, err := s.store.PlatformBalance(ctx)
		s.Require().NoError(err)
		s.Equal(uint64(10), platform)
	})

	s.Run("accumulates across sales", func() {
		s.Require().NoError(s.store.Credit(ctx, "alice", 90, 10))

		balance, err := s.store.Balance(ctx, "alice")
		s.Require().NoError(err)
		s.Equal(uint64(180), balance)
	})
}

func (s *InMemoryStoreSuite) TestCreditOverflow() {
	ctx := context.Background()

	s.Run("seller balance cannot wrap", func() {
		s.Require().NoError(s.store.Credit(ctx, "whale", math.MaxUint64-5, 0))

		s.ErrorIs(s.store.Credit(ctx, "whale", 6, 0), sentinel.ErrInvalidState)

		balance, err := s.store.Balance(ctx, "whale")
		s.Require().NoError(err)
		s.Equal(uint64(math.MaxUint64-5), balance, "rejected credit must not move the balance")
	})

	s.Run("credit up to the limit still lands", func() {
		s.Require().NoError(s.store.Credit(ctx, "whale", 5, 0))

		balance, err := s.store.Balance(ctx, "whale")
		s.Require().NoError(err)
		s.Equal(uint64(math.MaxUint64), balance)
	})

	s.Run("platform balance cannot wrap", func() {
		s.Require().NoError(s.store.Credit(ctx, "bob", 0, math.MaxUint64))

		s.ErrorIs(s.store.Credit(ctx, "bob", 1, 1), sentinel.ErrInvalidState)

		balance, err := s.store.Balance(ctx, "bob")
		s.Require().NoError(err)
		s.Zero(balance, "a rejected credit leaves neither half applied")

		platform, err := s.store.PlatformBalance(ctx)
		s.Require().NoError(err)
		s.Equal(uint64(math.MaxUint64), platform)
	})
}

func (s *InMemoryStoreSuite) TestWithdrawAll() {
	ctx := context.Background()
	s.Require().NoError(s.store.Credit(ctx, "alice", 90, 10))

	s.Run("drains the balance", func() {
		amount, err := s.store.WithdrawAll(ctx, "alice")
		s.Require().NoError(err)
		s.Equal(uint64(90), amount)

		balance, err := s.store.Balance(ctx, "alice")
		s.Require().NoError(err)
		s.Zero(balance)
	})

	s.Run("second withdrawal finds nothing", func() {
		amount, err := s.store.WithdrawAll(ctx, "alice")
		s.Require().NoError(err)
		s.Zero(amount)
	})
}

func (s *InMemoryStoreSuite) TestWithdrawPlatform() {
	ctx := context.Background()
	s.Require().NoError(s.store.Credit(ctx, "alice", 90, 10))

	s.Run("partial debit", func() {
		s.Require().NoError(s.store.WithdrawPlatform(ctx, 4))

		platform, err := s.store.PlatformBalance(ctx)
		s.Require().NoError(err)
		s.Equal(uint64(6), platform)
	})

	s.Run("over-balance rejected without debit", func() {
		s.ErrorIs(s.store.WithdrawPlatform(ctx, 7), sentinel.ErrInvalidState)

		platform, err := s.store.PlatformBalance(ctx)
		s.Require().NoError(err)
		s.Equal(uint64(6), platform)
	})
}
