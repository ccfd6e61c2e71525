package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/time/rate"

	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
)

// SourceReader is the raw side of one download. It counts bytes, reports
// progress, and records the first transport error so callers can tell a
// broken connection from malformed content after the fact.
type SourceReader struct {
	r        io.Reader
	n        int64
	err      error
	progress func(n int64)
}

// NewSourceReader wraps r. progress, if non-nil, is called with the running
// byte count after every successful read.
func NewSourceReader(r io.Reader, progress func(n int64)) *SourceReader {
	return &SourceReader{r: r, progress: progress}
}

// Read implements io.Reader. Non-EOF errors are wrapped in model.ErrNetwork
// and remembered.
func (s *SourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n > 0 {
		s.n += int64(n)
		if s.progress != nil {
			s.progress(s.n)
		}
	}
	if err != nil && !errors.Is(err, io.EOF) {
		if s.err == nil {
			s.err = fmt.Errorf("%w: read after %d bytes: %w", model.ErrNetwork, s.n, err)
		}
		return n, s.err
	}
	return n, err
}

// N returns the number of bytes read so far.
func (s *SourceReader) N() int64 {
	return s.n
}

// Err returns the first transport error seen, or nil.
func (s *SourceReader) Err() error {
	return s.err
}

// limitedReader throttles reads through a token bucket measured in bytes.
type limitedReader struct {
	ctx context.Context
	r   io.Reader
	lim *rate.Limiter
}

// RateLimit returns r throttled by lim. Passing the same limiter to every
// worker caps the aggregate rate of the run. A nil limiter returns r unchanged.
func RateLimit(ctx context.Context, r io.Reader, lim *rate.Limiter) io.Reader {
	if lim == nil || lim.Limit() == rate.Inf {
		return r
	}
	return &limitedReader{ctx: ctx, r: r, lim: lim}
}

// NewLimiter builds a byte-rate limiter. Burst is one second's worth of
// bytes so a single read never asks for more tokens than the bucket holds.
func NewLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec))
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if limit := l.lim.Burst(); len(p) > limit {
		p = p[:limit]
	}
	n, err := l.r.Read(p)
	if n > 0 {
		if werr := l.lim.WaitN(l.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
