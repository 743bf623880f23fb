package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyExports is returned when no export slot frees up in time.
var ErrTooManyExports = errors.New("too many concurrent exports, please try again later")

// Export limiter defaults.
const (
	DefaultMaxConcurrentExports = 4
	DefaultExportWait           = 10 * time.Second
)

// drainPollInterval is how often WaitForDrain checks for idle.
const drainPollInterval = 50 * time.Millisecond

// ExportLimiter bounds how many backups are serialized at once.
// Queries are never limited; only exports hold a slot.
type ExportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu      sync.Mutex
	active  int
	served  int64
	refused int64
}

// NewExportLimiter allows at most maxConcurrent exports. Callers that cannot
// get a slot within maxWait receive ErrTooManyExports. Non-positive
// arguments fall back to the defaults.
func NewExportLimiter(maxConcurrent int, maxWait time.Duration) *ExportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentExports
	}
	if maxWait <= 0 {
		maxWait = DefaultExportWait
	}
	return &ExportLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire waits for a slot. A cancelled ctx returns ctx.Err(); running out
// of wait time returns ErrTooManyExports. Every nil return must be paired
// with exactly one Release.
func (l *ExportLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.track(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		l.mu.Lock()
		l.refused++
		l.mu.Unlock()
		return ErrTooManyExports
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *ExportLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.track(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *ExportLimiter) Release() {
	l.track(-1)
	<-l.slots
}

func (l *ExportLimiter) track(delta int) {
	l.mu.Lock()
	l.active += delta
	if delta > 0 {
		l.served++
	}
	l.mu.Unlock()
}

// ActiveCount returns the number of exports in flight.
func (l *ExportLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// MaxConcurrent returns the slot count.
func (l *ExportLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// WaitForDrain blocks until no export is in flight or ctx is done.
// Used during shutdown.
func (l *ExportLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ExportLimiterStatus is a point-in-time view of the limiter.
type ExportLimiterStatus struct {
	Active        int   `json:"active"`
	Available     int   `json:"available"`
	MaxConcurrent int   `json:"max_concurrent"`
	Served        int64 `json:"served"`
	Refused       int64 `json:"refused"`
}

// Status reports the limiter state for /api/status.
func (l *ExportLimiter) Status() ExportLimiterStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ExportLimiterStatus{
		Active:        l.active,
		Available:     cap(l.slots) - l.active,
		MaxConcurrent: cap(l.slots),
		Served:        l.served,
		Refused:       l.refused,
	}
}
