package ingest

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy shapes the retry behavior of one activity kind: exponential
// backoff starting at InitialWait, multiplied per attempt, capped at MaxWait
// and MaxAttempts. The zero value is not usable; construct via DefaultRetryPolicy
// or fill every field.
type RetryPolicy struct {
	MaxAttempts int
	InitialWait time.Duration
	Multiplier  float64
	MaxWait     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		InitialWait: 5 * time.Second,
		Multiplier:  2.0,
		MaxWait:     60 * time.Second,
	}
}

// NextDelay returns the wait before the attempt following the given
// 1-based attempt number, or false when the attempt budget is exhausted.
// Pure: same inputs always produce the same answer.
func (p RetryPolicy) NextDelay(attempt int) (time.Duration, bool) {
	if attempt < 1 || attempt >= p.MaxAttempts {
		return 0, false
	}
	d := float64(p.InitialWait)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	delay := time.Duration(d)
	if delay > p.MaxWait {
		delay = p.MaxWait
	}
	return delay, true
}

// Do runs op until it succeeds, fails permanently, or the attempt budget is
// exhausted. Permanent errors are returned untouched after the first
// occurrence. Exhaustion wraps the last error in an *InfrastructureError
// carrying the attempt count. The context is consulted between attempts, so
// caller cancellation aborts without further calls.
func (p RetryPolicy) Do(ctx context.Context, stage Stage, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				slog.InfoContext(ctx, "activity succeeded after retry",
					"stage", string(stage), "attempt", attempt)
			}
			return nil
		}

		if Classify(lastErr) == ClassPermanent {
			return lastErr
		}

		delay, ok := p.NextDelay(attempt)
		if !ok {
			break
		}

		slog.WarnContext(ctx, "activity failed, will retry",
			"stage", string(stage), "attempt", attempt, "max_attempts", p.MaxAttempts,
			"delay", delay, "error", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return &InfrastructureError{Stage: stage, Attempts: p.MaxAttempts, Err: lastErr}
}
