package capture

import (
	"sync"
	"time"
)

// Gate admits one capture cycle at a time and debounces triggers: a trigger
// is accepted only if no cycle was running when it arrived and at least
// window has passed since the previously accepted trigger.
type Gate struct {
	mu        sync.Mutex
	window    time.Duration
	last      time.Time
	busyUntil time.Time
	inFlight  bool
}

func NewGate(window time.Duration) *Gate {
	return &Gate{window: window}
}

// TryAcquire reports whether a trigger received at now starts a cycle.
// Triggers received before the previous cycle ended are rejected even when
// they are handed over afterwards. Callers that acquire must Release when
// the cycle ends.
func (g *Gate) TryAcquire(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight || now.Before(g.busyUntil) {
		return false
	}
	if !g.last.IsZero() && now.Sub(g.last) < g.window {
		return false
	}
	g.inFlight = true
	g.last = now
	return true
}

// Release ends the running cycle at now. The debounce window still counts
// from the accepted trigger.
func (g *Gate) Release(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = false
	if now.After(g.busyUntil) {
		g.busyUntil = now
	}
}
