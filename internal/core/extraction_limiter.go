package core

// extraction_limiter.go bounds how many extractions run at once.
//
// Each extraction holds a spooled temp file and a fully decoded workbook or
// document in memory, so the limiter is what keeps a burst of uploads from
// exhausting memory or disk. When every slot is taken, callers wait up to
// maxWait before failing with ErrTooManyExtractions.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyExtractions is returned when no slot frees up within the wait
// timeout. Clients should retry after a short delay.
var ErrTooManyExtractions = errors.New("too many extractions in progress, please try again later")

// DefaultMaxConcurrentExtractions is the default number of parallel extractions.
const DefaultMaxConcurrentExtractions = 5

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// ExtractionLimiter is a counting semaphore over extraction slots.
type ExtractionLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.Mutex
	active int
	idle   chan struct{} // closed while active == 0
}

// NewExtractionLimiter allows at most maxConcurrent simultaneous extractions.
// Non-positive arguments fall back to the package defaults.
func NewExtractionLimiter(maxConcurrent int, maxWait time.Duration) *ExtractionLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentExtractions
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	idle := make(chan struct{})
	close(idle)
	return &ExtractionLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		idle:    idle,
	}
}

// Acquire blocks until a slot is free, ctx is done, or maxWait elapses.
// On success the caller must call Release exactly once.
func (l *ExtractionLimiter) Acquire(ctx context.Context) error {
	// Fast path avoids a timer when a slot is free.
	if l.TryAcquire() {
		return nil
	}

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.enter()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyExtractions
	}
}

// TryAcquire takes a slot without blocking and reports whether it did.
func (l *ExtractionLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.enter()
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *ExtractionLimiter) Release() {
	l.mu.Lock()
	l.active--
	if l.active == 0 {
		close(l.idle)
	}
	l.mu.Unlock()

	<-l.slots
}

func (l *ExtractionLimiter) enter() {
	l.mu.Lock()
	if l.active == 0 {
		l.idle = make(chan struct{})
	}
	l.active++
	l.mu.Unlock()
}

// ActiveCount returns the number of running extractions.
func (l *ExtractionLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// MaxConcurrent returns the slot count.
func (l *ExtractionLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// Available returns the number of free slots.
func (l *ExtractionLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no extraction is running or ctx is done.
// Used during shutdown after the listener has stopped accepting uploads.
func (l *ExtractionLimiter) WaitForDrain(ctx context.Context) error {
	for {
		l.mu.Lock()
		idle := l.idle
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
			// A new extraction may have started between close and wake-up.
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// LimiterStatus is a point-in-time snapshot of the limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for monitoring.
func (l *ExtractionLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: cap(l.slots),
	}
}
