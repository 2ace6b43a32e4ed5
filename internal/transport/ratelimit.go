package transport

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// NewBWLimiter creates a rate.Limiter that caps aggregate throughput to
// bytesPerSec. The burst is set to 1 MB to allow natural read-size chunks
// through without unnecessary blocking on small reads.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	burst := 1 << 20 // 1 MB
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// waitN blocks until n bytes may pass. WaitN rejects requests larger than
// the burst, so big chunks are split.
func waitN(ctx context.Context, limiter *rate.Limiter, n int) error {
	burst := limiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := limiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// rateLimitedReader wraps an io.Reader and enforces a shared rate limit.
type rateLimitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

// newRateLimitedReader wraps r so that reads are throttled by limiter. A nil
// limiter only adds cancellation.
func newRateLimitedReader(
	ctx context.Context,
	r io.Reader,
	limiter *rate.Limiter,
) *rateLimitedReader {
	return &rateLimitedReader{r: r, limiter: limiter, ctx: ctx}
}

func (rl *rateLimitedReader) Read(p []byte) (int, error) {
	if err := rl.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := rl.r.Read(p)
	if n > 0 && rl.limiter != nil {
		if waitErr := waitN(rl.ctx, rl.limiter, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}

// rateLimitedWriter wraps an io.Writer and enforces a shared rate limit.
type rateLimitedWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

func newRateLimitedWriter(
	ctx context.Context,
	w io.Writer,
	limiter *rate.Limiter,
) *rateLimitedWriter {
	return &rateLimitedWriter{w: w, limiter: limiter, ctx: ctx}
}

func (rw *rateLimitedWriter) Write(p []byte) (int, error) {
	if err := rw.ctx.Err(); err != nil {
		return 0, err
	}
	if rw.limiter != nil {
		if err := waitN(rw.ctx, rw.limiter, len(p)); err != nil {
			return 0, err
		}
	}
	return rw.w.Write(p)
}
