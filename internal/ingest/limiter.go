package ingest

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds the number of simultaneously outstanding operations of one
// kind. Admission is FIFO. Acquire suspends the caller while at capacity.
type Limiter struct {
	sem *semaphore.Weighted
	cap int
}

func NewLimiter(capacity int) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(capacity)), cap: capacity}
}

func (l *Limiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l *Limiter) Release() {
	l.sem.Release(1)
}

func (l *Limiter) Capacity() int { return l.cap }
