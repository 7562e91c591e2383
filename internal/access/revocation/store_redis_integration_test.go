//go:build integration

package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"keymarket/internal/access/revocation"
	id "keymarket/pkg/domain"
	"keymarket/pkg/testutil/containers"
)

type RedisListSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	list  *revocation.RedisList
}

func TestRedisListSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisListSuite))
}

func (s *RedisListSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.list = revocation.NewRedisList(s.redis.Client)
}

func (s *RedisListSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisListSuite) TestMarkAndCheck() {
	ctx := context.Background()
	credentialID := id.NewCredentialID()

	revoked, err := s.list.IsRevoked(ctx, credentialID)
	s.Require().NoError(err)
	s.False(revoked, "unknown credential is not revoked")

	s.Require().NoError(s.list.MarkRevoked(ctx, credentialID, 0))

	revoked, err = s.list.IsRevoked(ctx, credentialID)
	s.Require().NoError(err)
	s.True(revoked)
}

func (s *RedisListSuite) TestEntryLapsesWithTTL() {
	ctx := context.Background()
	credentialID := id.NewCredentialID()

	s.Require().NoError(s.list.MarkRevoked(ctx, credentialID, 200*time.Millisecond))

	revoked, err := s.list.IsRevoked(ctx, credentialID)
	s.Require().NoError(err)
	s.True(revoked)

	// The entry may lapse once the credential would have expired anyway; the
	// primary store still reports it revoked.
	s.Eventually(func() bool {
		revoked, err := s.list.IsRevoked(ctx, credentialID)
		return err == nil && !revoked
	}, 2*time.Second, 50*time.Millisecond)
}

func (s *RedisListSuite) TestZeroTTLNeverLapses() {
	ctx := context.Background()
	credentialID := id.NewCredentialID()

	s.Require().NoError(s.list.MarkRevoked(ctx, credentialID, 0))
	time.Sleep(300 * time.Millisecond)

	revoked, err := s.list.IsRevoked(ctx, credentialID)
	s.Require().NoError(err)
	s.True(revoked)
}
