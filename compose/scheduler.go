package compose

import (
	"context"
	"sync"
	"time"
)

// FrameScheduler decouples frame requests from frame execution. The
// pipeline hands it a callback at most once per dirty period; the
// scheduler decides when the callback runs.
type FrameScheduler interface {
	// ScheduleOnce arranges for fn to run once, at the scheduler's
	// discretion. Must not run fn synchronously while holding locks
	// the caller holds.
	ScheduleOnce(fn func())
}

// ManualScheduler queues callbacks until Tick is called. Intended for
// tests and for hosts that drive rendering from their own loop.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []func()
}

// ScheduleOnce queues fn for the next Tick.
func (s *ManualScheduler) ScheduleOnce(fn func()) {
	s.mu.Lock()
	s.pending = append(s.pending, fn)
	s.mu.Unlock()
}

// Pending reports the number of queued callbacks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Tick runs all queued callbacks and returns how many ran.
func (s *ManualScheduler) Tick() int {
	s.mu.Lock()
	fns := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// TickerScheduler runs callbacks on a fixed interval from its own
// goroutine, coalescing to at most one callback per tick. Stops when
// the context is canceled.
type TickerScheduler struct {
	mu      sync.Mutex
	pending func()
}

// NewTickerScheduler starts the scheduler goroutine.
func NewTickerScheduler(ctx context.Context, interval time.Duration) *TickerScheduler {
	s := &TickerScheduler{}
	go s.run(ctx, interval)
	return s
}

// ScheduleOnce queues fn, replacing any not-yet-run callback.
func (s *TickerScheduler) ScheduleOnce(fn func()) {
	s.mu.Lock()
	s.pending = fn
	s.mu.Unlock()
}

func (s *TickerScheduler) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.mu.Lock()
		fn := s.pending
		s.pending = nil
		s.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}
