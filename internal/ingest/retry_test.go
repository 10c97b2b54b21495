package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDelay_ExponentialWithCap(t *testing.T) {
	p := DefaultRetryPolicy() // 5s initial, x2, 60s cap, 5 attempts

	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second}
	for attempt, exp := range want {
		d, ok := p.NextDelay(attempt + 1)
		require.True(t, ok, "attempt %d", attempt+1)
		assert.Equal(t, exp, d)
	}

	// Fifth attempt is the last allowed one; no delay follows it.
	_, ok := p.NextDelay(5)
	assert.False(t, ok)

	// The cap kicks in once the exponent overtakes it.
	p.MaxAttempts = 10
	d, ok := p.NextDelay(6)
	require.True(t, ok)
	assert.Equal(t, 60*time.Second, d)
}

func TestDo_SucceedsThirdAttempt(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), StageEmbed, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentNotRetried(t *testing.T) {
	calls := 0
	perm := NewValidationError("unsupported file type")
	err := fastPolicy(5).Do(context.Background(), StageFetch, func(ctx context.Context) error {
		calls++
		return perm
	})

	assert.Equal(t, 1, calls, "permanent errors must not be retried")
	assert.Same(t, perm, err, "permanent error surfaces verbatim")
}

func TestDo_ExhaustionBecomesInfrastructureError(t *testing.T) {
	calls := 0
	inner := errors.New("connection refused")
	err := fastPolicy(5).Do(context.Background(), StageStore, func(ctx context.Context) error {
		calls++
		return inner
	})

	assert.Equal(t, 5, calls)

	var infra *InfrastructureError
	require.ErrorAs(t, err, &infra)
	assert.Equal(t, StageStore, infra.Stage)
	assert.Equal(t, 5, infra.Attempts)
	assert.ErrorIs(t, infra, inner)
}

func TestDo_CancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := fastPolicy(5).Do(ctx, StageEmbed, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("flaky")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
