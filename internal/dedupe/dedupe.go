// Package dedupe records which stored objects have already been processed so
// a redelivered object-created event does not dispatch its lines twice.
//
// A claim is taken before processing and released if processing fails, so
// failed objects stay eligible for redelivery. Claims expire after a TTL; a
// zero TTL keeps them forever.
package dedupe

import (
	"context"
	"sync"
	"time"
)

// Ledger is a processed-object claim store.
type Ledger interface {
	// Claim returns true if key was not already claimed.
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Noop claims every key. Used when dedupe is disabled.
type Noop struct{}

func (Noop) Claim(context.Context, string) (bool, error) { return true, nil }
func (Noop) Release(context.Context, string) error        { return nil }

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	claims map[string]time.Time
}

func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	return &MemoryLedger{ttl: ttl, now: time.Now, claims: make(map[string]time.Time)}
}

func (l *MemoryLedger) Claim(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if exp, ok := l.claims[key]; ok && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}
	var exp time.Time
	if l.ttl > 0 {
		exp = now.Add(l.ttl)
	}
	l.claims[key] = exp
	return true, nil
}

func (l *MemoryLedger) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.claims, key)
	return nil
}

// Sweep drops expired claims and returns how many were removed.
func (l *MemoryLedger) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for k, exp := range l.claims {
		if !exp.IsZero() && !now.Before(exp) {
			delete(l.claims, k)
			n++
		}
	}
	return n
}
