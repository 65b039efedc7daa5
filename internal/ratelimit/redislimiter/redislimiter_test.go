package redislimiter

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimiter(t *testing.T) *Limiter {
	t.Helper()
	_ = godotenv.Load()
	addr := os.Getenv("PIDGIN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PIDGIN_TEST_REDIS_ADDR not set")
	}
	l, err := New(addr, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestNew_RejectsUnreachableAddress(t *testing.T) {
	_, err := New("127.0.0.1:1", 1)
	assert.Error(t, err)
}

func TestTryAcquire_AllowsUnderCeiling(t *testing.T) {
	l := testLimiter(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ok, err := l.TryAcquire(ctx, "openai", 100, Ceiling{RequestsPerWindow: 10, TokensPerWindow: 10000})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryAcquire_RejectsOverRequestCeilingAndRollsBack(t *testing.T) {
	l := testLimiter(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ceiling := Ceiling{RequestsPerWindow: 1, TokensPerWindow: 0}
	ok, err := l.TryAcquire(ctx, "anthropic", 10, ceiling)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.TryAcquire(ctx, "anthropic", 10, ceiling)
	require.NoError(t, err)
	assert.False(t, ok)

	// A third call should again be allowed since the second's increment was
	// rolled back rather than leaking into the counter.
	ok, err = l.TryAcquire(ctx, "anthropic", 10, Ceiling{RequestsPerWindow: 2})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryAcquire_RejectsOverTokenCeiling(t *testing.T) {
	l := testLimiter(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ceiling := Ceiling{TokensPerWindow: 50}
	ok, err := l.TryAcquire(ctx, "xai", 60, ceiling)
	require.NoError(t, err)
	assert.False(t, ok)
}
