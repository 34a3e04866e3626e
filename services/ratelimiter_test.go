package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsWithinQuota(t *testing.T) {
	r := NewRateLimiter(5, 100)
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Wait(context.Background()))
	}
}

func TestRateLimiterBlocksUntilNextMinute(t *testing.T) {
	r := NewRateLimiter(1, 100)
	require.NoError(t, r.Wait(context.Background()))
	r.lastMinuteReset = time.Now().Add(-59 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiterErrorsWhenDailyQuotaExhausted(t *testing.T) {
	r := NewRateLimiter(100, 1)
	require.NoError(t, r.Wait(context.Background()))
	r.lastMinuteReset = time.Now().Add(-2 * time.Minute)

	err := r.Wait(context.Background())
	assert.Error(t, err)
}

func TestRateLimiterRespectsContextCancellation(t *testing.T) {
	r := NewRateLimiter(1, 100)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
