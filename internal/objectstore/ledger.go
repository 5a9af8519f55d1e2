package objectstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"listcart/pkg/platform/sentinel"
)

// NonceLedger records signed-URL nonces so each upload URL is used once.
type NonceLedger interface {
	// Use claims nonce until expiresAt. It returns sentinel.ErrAlreadyUsed when
	// the nonce was claimed before.
	Use(ctx context.Context, nonce string, expiresAt time.Time) error
}

// InMemoryNonceLedger is a NonceLedger for single-instance deployments.
type InMemoryNonceLedger struct {
	mu     sync.Mutex
	nonces map[string]time.Time
	now    func() time.Time
}

func NewInMemoryNonceLedger() *InMemoryNonceLedger {
	return &InMemoryNonceLedger{nonces: make(map[string]time.Time), now: time.Now}
}

func (l *InMemoryNonceLedger) Use(_ context.Context, nonce string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for n, exp := range l.nonces {
		if !now.Before(exp) {
			delete(l.nonces, n)
		}
	}
	if _, used := l.nonces[nonce]; used {
		return fmt.Errorf("nonce %s: %w", nonce, sentinel.ErrAlreadyUsed)
	}
	l.nonces[nonce] = expiresAt
	return nil
}

const nonceKeyPrefix = "listcart:upload-nonce:"

// RedisNonceLedger shares nonce state between issuer replicas.
type RedisNonceLedger struct {
	client redis.UniversalClient
}

func NewRedisNonceLedger(client redis.UniversalClient) *RedisNonceLedger {
	return &RedisNonceLedger{client: client}
}

func (l *RedisNonceLedger) Use(ctx context.Context, nonce string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := l.client.SetNX(ctx, nonceKeyPrefix+nonce, 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("claim upload nonce: %w", err)
	}
	if !ok {
		return fmt.Errorf("nonce %s: %w", nonce, sentinel.ErrAlreadyUsed)
	}
	return nil
}
