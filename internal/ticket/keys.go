package ticket

import (
	"sync"
	"time"

	"listcart/pkg/domain"
)

// KeyBuilder hands out object keys whose millisecond component strictly
// increases per subject, so two tickets issued in the same millisecond never
// share a key.
type KeyBuilder struct {
	mu   sync.Mutex
	last map[domain.SubjectID]int64
}

func NewKeyBuilder() *KeyBuilder {
	return &KeyBuilder{last: make(map[domain.SubjectID]int64)}
}

// Next returns the key for subject at now.
func (b *KeyBuilder) Next(subject domain.SubjectID, now time.Time) domain.ObjectKey {
	b.mu.Lock()
	defer b.mu.Unlock()

	millis := now.UnixMilli()
	if last, ok := b.last[subject]; ok && millis <= last {
		millis = last + 1
	}
	b.last[subject] = millis
	return domain.ObjectKey{Subject: subject, Millis: millis}
}

// Forget drops per-subject state older than cutoff.
func (b *KeyBuilder) Forget(cutoff time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := cutoff.UnixMilli()
	for subject, last := range b.last {
		if last < c {
			delete(b.last, subject)
		}
	}
}
