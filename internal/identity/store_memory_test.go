package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"listcart/pkg/platform/sentinel"
)

type InMemoryRefreshTokenStoreSuite struct {
	suite.Suite
	store *InMemoryRefreshTokenStore
	now   time.Time
}

func TestInMemoryRefreshTokenStore(t *testing.T) {
	suite.Run(t, new(InMemoryRefreshTokenStoreSuite))
}

func (s *InMemoryRefreshTokenStoreSuite) SetupTest() {
	s.store = NewInMemoryRefreshTokenStore()
	s.now = time.Now()
}

func (s *InMemoryRefreshTokenStoreSuite) record(token string, ttl time.Duration) *RefreshTokenRecord {
	return &RefreshTokenRecord{Token: token, Subject: "alice", CreatedAt: s.now, ExpiresAt: s.now.Add(ttl)}
}

func (s *InMemoryRefreshTokenStoreSuite) TestCreateAndFind() {
	require.NoError(s.T(), s.store.Create(context.Background(), s.record("rt_1", time.Hour)))

	found, err := s.store.Find(context.Background(), "rt_1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "alice", found.Subject.String())

	err = s.store.Create(context.Background(), s.record("rt_1", time.Hour))
	assert.ErrorIs(s.T(), err, sentinel.ErrConflict)
}

func (s *InMemoryRefreshTokenStoreSuite) TestConsume() {
	require.NoError(s.T(), s.store.Create(context.Background(), s.record("rt_1", time.Hour)))

	_, err := s.store.Consume(context.Background(), "rt_1", s.now)
	require.NoError(s.T(), err)

	_, err = s.store.Consume(context.Background(), "rt_1", s.now)
	assert.ErrorIs(s.T(), err, sentinel.ErrAlreadyUsed)

	_, err = s.store.Consume(context.Background(), "missing", s.now)
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

func (s *InMemoryRefreshTokenStoreSuite) TestConsumeExpired() {
	require.NoError(s.T(), s.store.Create(context.Background(), s.record("rt_old", time.Minute)))

	_, err := s.store.Consume(context.Background(), "rt_old", s.now.Add(time.Minute))
	assert.ErrorIs(s.T(), err, sentinel.ErrExpired)
}

func (s *InMemoryRefreshTokenStoreSuite) TestDeleteExpired() {
	require.NoError(s.T(), s.store.Create(context.Background(), s.record("rt_live", time.Hour)))
	require.NoError(s.T(), s.store.Create(context.Background(), s.record("rt_dead", time.Minute)))
	require.NoError(s.T(), s.store.Create(context.Background(), s.record("rt_used", time.Hour)))
	_, err := s.store.Consume(context.Background(), "rt_used", s.now)
	require.NoError(s.T(), err)

	n, err := s.store.DeleteExpired(context.Background(), s.now.Add(30*time.Minute))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, n)

	_, err = s.store.Find(context.Background(), "rt_live")
	assert.NoError(s.T(), err)
}
