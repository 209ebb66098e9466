package publisher

import (
	"errors"
	"sync"
	"time"
)

// Circuit breaker guarding one posting platform (Closed → Open → Half-Open).
// A platform that keeps rejecting posts is fast-failed for a while instead
// of being hammered on every run.

// BreakerState is the current circuit state.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // normal — posts flow
	BreakerOpen                         // tripped — fast-fail all posts
	BreakerHalfOpen                     // probing — one post allowed
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned while the breaker is open.
var ErrBreakerOpen = errors.New("platform circuit breaker is open")

// Breaker implements the pattern with thread-safe state transitions.
type Breaker struct {
	mu               sync.Mutex
	state            BreakerState
	failures         int
	successes        int
	lastFailure      time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
}

// NewBreaker creates a closed breaker. Zero arguments pick the defaults
// (3 failures to trip, 1 success to close, 5 minutes open).
func NewBreaker(failureThreshold, successThreshold int, openTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if successThreshold <= 0 {
		successThreshold = 1
	}
	if openTimeout <= 0 {
		openTimeout = 5 * time.Minute
	}
	return &Breaker{
		state:            BreakerClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
	}
}

// State returns the current state, transitioning open → half-open once the
// timeout has elapsed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && time.Since(b.lastFailure) >= b.openTimeout {
		b.state = BreakerHalfOpen
		b.successes = 0
	}
	return b.state
}

// Execute runs fn through the breaker, returning ErrBreakerOpen immediately
// when open.
func (b *Breaker) Execute(fn func() error) error {
	if b.State() == BreakerOpen {
		return ErrBreakerOpen
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) onFailure() {
	b.failures++
	b.lastFailure = time.Now()
	switch b.state {
	case BreakerClosed:
		if b.failures >= b.failureThreshold {
			b.state = BreakerOpen
			b.successes = 0
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.failures = 0
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = BreakerClosed
			b.failures = 0
			b.successes = 0
		}
	}
}
