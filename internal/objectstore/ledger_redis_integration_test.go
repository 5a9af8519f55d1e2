//go:build integration

package objectstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"listcart/internal/objectstore"
	"listcart/pkg/platform/sentinel"
	"listcart/pkg/testutil/containers"
)

type RedisNonceLedgerSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	ledger *objectstore.RedisNonceLedger
}

func TestRedisNonceLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisNonceLedgerSuite))
}

func (s *RedisNonceLedgerSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.ledger = objectstore.NewRedisNonceLedger(s.redis.Client)
}

func (s *RedisNonceLedgerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisNonceLedgerSuite) TestSingleUse() {
	ctx := context.Background()
	exp := time.Now().Add(10 * time.Second)

	s.Require().NoError(s.ledger.Use(ctx, "nonce-1", exp))
	s.ErrorIs(s.ledger.Use(ctx, "nonce-1", exp), sentinel.ErrAlreadyUsed)
	s.NoError(s.ledger.Use(ctx, "nonce-2", exp))
}

func (s *RedisNonceLedgerSuite) TestClaimsExpireWithTicket() {
	ctx := context.Background()
	s.Require().NoError(s.ledger.Use(ctx, "nonce-ttl", time.Now().Add(5*time.Second)))

	ttl, err := s.redis.Client.TTL(ctx, "listcart:upload-nonce:nonce-ttl").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, 5*time.Second)
}
