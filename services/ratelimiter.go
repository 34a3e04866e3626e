package services

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter throttles calls to the external source provider to a
// per-minute and per-day quota, adapted from alphavantage/rate_limiter.go
// and stripped of its pluggable logger/metrics hooks since Source already
// logs its own fetch outcomes.
type RateLimiter struct {
	mu              sync.Mutex
	requestsPerMin  int
	requestsPerDay  int
	minuteCounter   int
	dayCounter      int
	lastMinuteReset time.Time
	lastDayReset    time.Time
}

// NewRateLimiter constructs a RateLimiter enforcing perMinute and perDay
// request quotas.
func NewRateLimiter(perMinute, perDay int) *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		requestsPerMin:  perMinute,
		requestsPerDay:  perDay,
		lastMinuteReset: now,
		lastDayReset:    now.Truncate(24 * time.Hour),
	}
}

// Wait blocks until a request can be made without exceeding either quota,
// or returns an error if the daily quota is exhausted or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		now := time.Now()
		if now.Sub(r.lastMinuteReset) >= time.Minute {
			r.minuteCounter = 0
			r.lastMinuteReset = now
		}
		if now.Sub(r.lastDayReset) >= 24*time.Hour {
			r.dayCounter = 0
			r.lastDayReset = now.Truncate(24 * time.Hour)
		}

		if r.minuteCounter < r.requestsPerMin && r.dayCounter < r.requestsPerDay {
			r.minuteCounter++
			r.dayCounter++
			return nil
		}

		var waitDuration time.Duration
		if r.minuteCounter >= r.requestsPerMin {
			waitDuration = time.Minute - now.Sub(r.lastMinuteReset)
		} else {
			return fmt.Errorf("daily rate limit of %d requests exceeded", r.requestsPerDay)
		}

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
