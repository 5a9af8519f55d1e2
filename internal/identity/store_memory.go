package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"listcart/pkg/platform/sentinel"
)

// Error Contract:
// - Return ErrNotFound when the token does not exist
// - Return ErrExpired when the token is past its expiry
// - Return ErrAlreadyUsed when the token was consumed before
// InMemoryRefreshTokenStore stores refresh tokens in memory.
type InMemoryRefreshTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*RefreshTokenRecord
}

// NewInMemoryRefreshTokenStore constructs an empty in-memory refresh token store.
func NewInMemoryRefreshTokenStore() *InMemoryRefreshTokenStore {
	return &InMemoryRefreshTokenStore{tokens: make(map[string]*RefreshTokenRecord)}
}

func (s *InMemoryRefreshTokenStore) Create(_ context.Context, record *RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[record.Token]; exists {
		return fmt.Errorf("refresh token exists: %w", sentinel.ErrConflict)
	}
	s.tokens[record.Token] = record
	return nil
}

func (s *InMemoryRefreshTokenStore) Find(_ context.Context, token string) (*RefreshTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.tokens[token]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
}

// Consume marks the refresh token as used if it is valid at now.
func (s *InMemoryRefreshTokenStore) Consume(_ context.Context, token string, now time.Time) (*RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[token]
	if !ok {
		return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
	}
	if record.Used {
		return nil, fmt.Errorf("refresh token already used: %w", sentinel.ErrAlreadyUsed)
	}
	if record.Expired(now) {
		return nil, fmt.Errorf("refresh token expired: %w", sentinel.ErrExpired)
	}
	record.Used = true
	record.UsedAt = now
	copied := *record
	return &copied, nil
}

// DeleteExpired removes tokens that are used or expired as of now.
func (s *InMemoryRefreshTokenStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, record := range s.tokens {
		if record.Used || record.Expired(now) {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
