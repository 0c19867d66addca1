package ratelimit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harnessai/orchestrator/internal/store"
)

func newTestLimiter(t *testing.T, limit int) *Limiter {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return New(st, limit, time.Hour)
}

func TestLimiter_AllowUpToLimit(t *testing.T) {
	l := newTestLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(ctx, "10.0.0.1"), "request %d should be allowed", i+1)
	}
	assert.False(t, l.Allow(ctx, "10.0.0.1"))
}

func TestLimiter_PerIPWindows(t *testing.T) {
	l := newTestLimiter(t, 1)
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "10.0.0.1"))
	assert.False(t, l.Allow(ctx, "10.0.0.1"))
	assert.True(t, l.Allow(ctx, "10.0.0.2"))
}

// failingStore simulates a broken counter backend. Only the counter
// methods are exercised by the limiter.
type failingStore struct {
	store.Store
}

func (f *failingStore) GetCounter(ctx context.Context, key string) (int, error) {
	return 0, eris.New("store unavailable")
}

func (f *failingStore) IncrementCounter(ctx context.Context, key string, window time.Duration) (int, error) {
	return 0, eris.New("store unavailable")
}

func TestLimiter_FailsOpen(t *testing.T) {
	l := New(&failingStore{}, 1, time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(ctx, "10.0.0.1"))
	}
}
