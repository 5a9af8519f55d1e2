package objectstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listcart/pkg/platform/sentinel"
)

func TestInMemoryNonceLedger(t *testing.T) {
	ledger := NewInMemoryNonceLedger()
	now := time.Now()
	ledger.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, ledger.Use(ctx, "n1", now.Add(10*time.Second)))
	assert.ErrorIs(t, ledger.Use(ctx, "n1", now.Add(10*time.Second)), sentinel.ErrAlreadyUsed)
	require.NoError(t, ledger.Use(ctx, "n2", now.Add(10*time.Second)))

	now = now.Add(11 * time.Second)
	require.NoError(t, ledger.Use(ctx, "n3", now.Add(10*time.Second)))
	assert.NotContains(t, ledger.nonces, "n1", "expired nonces are purged")
}
