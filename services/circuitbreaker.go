package services

import (
	"errors"
	"log"
	"sync"
	"time"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

// CircuitBreaker protects the External Source Adapter against cascading
// failures from the upstream financial-data provider. Adapted from
// alphavantage/circuit_breaker.go, generalized to source.go's client.
type CircuitBreaker struct {
	mu              sync.RWMutex
	state           CircuitState
	failureCount    int
	successCount    int
	lastFailureTime time.Time

	maxFailures      int
	resetTimeout     time.Duration
	halfOpenRequests int
}

// NewCircuitBreaker creates a closed CircuitBreaker that opens after
// maxFailures consecutive failures and attempts recovery after
// resetTimeout.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		maxFailures:      maxFailures,
		resetTimeout:     resetTimeout,
		halfOpenRequests: 1,
	}
}

// Allow reports whether a request may proceed, transitioning Open to
// HalfOpen once resetTimeout has elapsed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if now.Sub(cb.lastFailureTime) > cb.resetTimeout {
			cb.state = StateHalfOpen
			cb.successCount = 0
			cb.failureCount = 0
			log.Println("circuit breaker transitioning to half-open")
			return nil
		}
		return errors.New("circuit breaker is open")

	case StateHalfOpen:
		if cb.successCount+cb.failureCount < cb.halfOpenRequests {
			return nil
		}
		return errors.New("circuit breaker is half-open, limited requests only")

	default:
		return nil
	}
}

// RecordSuccess records a successful request.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.halfOpenRequests {
			cb.state = StateClosed
			cb.failureCount = 0
			log.Println("circuit breaker closed after successful recovery")
		}
	case StateClosed:
		cb.failureCount = 0
	}
}

// RecordFailure records a failed request.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.maxFailures {
			cb.state = StateOpen
			log.Printf("circuit breaker opened after %d failures", cb.failureCount)
		}
	case StateHalfOpen:
		cb.state = StateOpen
		log.Println("circuit breaker reopened from half-open state")
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}
