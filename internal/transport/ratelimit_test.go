package transport

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBWLimiter(t *testing.T) {
	t.Parallel()

	t.Run("burst capped to rate when rate < 1MB", func(t *testing.T) {
		t.Parallel()
		lim := NewBWLimiter(1024)
		assert.Equal(t, 1024, lim.Burst())
	})

	t.Run("burst is 1MB when rate >= 1MB", func(t *testing.T) {
		t.Parallel()
		lim := NewBWLimiter(10 * 1024 * 1024)
		assert.Equal(t, 1<<20, lim.Burst())
	})
}

func TestRateLimitedReader(t *testing.T) {
	t.Parallel()

	t.Run("reads all data", func(t *testing.T) {
		t.Parallel()
		data := bytes.Repeat([]byte("x"), 4096)
		lim := NewBWLimiter(1 << 20)
		rl := newRateLimitedReader(context.Background(), bytes.NewReader(data), lim)

		got, err := io.ReadAll(rl)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("nil limiter passes through", func(t *testing.T) {
		t.Parallel()
		data := bytes.Repeat([]byte("y"), 100000)
		rl := newRateLimitedReader(context.Background(), bytes.NewReader(data), nil)

		got, err := io.ReadAll(rl)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("enforces rate limit", func(t *testing.T) {
		t.Parallel()
		// 10 KB at 5 KB/s should take ~1s after the burst.
		dataSize := 10 * 1024
		data := bytes.Repeat([]byte("a"), dataSize)
		lim := NewBWLimiter(5 * 1024)

		start := time.Now()
		rl := newRateLimitedReader(context.Background(), bytes.NewReader(data), lim)
		got, err := io.ReadAll(rl)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Len(t, got, dataSize)
		assert.Greater(t, elapsed, 500*time.Millisecond,
			"rate limiter should slow reads to ~5KB/s")
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()
		data := bytes.Repeat([]byte("b"), 1<<20)
		lim := NewBWLimiter(1024)

		ctx, cancel := context.WithCancel(context.Background())
		rl := newRateLimitedReader(ctx, bytes.NewReader(data), lim)
		cancel()

		_, err := rl.Read(make([]byte, 4096))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestRateLimitedWriter_ChunkLargerThanBurst(t *testing.T) {
	t.Parallel()

	// A single write larger than the burst must not be rejected.
	var buf bytes.Buffer
	lim := NewBWLimiter(64 * 1024)
	rw := newRateLimitedWriter(context.Background(), &buf, lim)

	n, err := rw.Write(bytes.Repeat([]byte("z"), 80*1024))
	require.NoError(t, err)
	assert.Equal(t, 80*1024, n)
}
