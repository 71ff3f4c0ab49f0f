package compose

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestManualSchedulerTick(t *testing.T) {
	var s ManualScheduler
	ran := 0
	s.ScheduleOnce(func() { ran++ })
	s.ScheduleOnce(func() { ran++ })

	if s.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", s.Pending())
	}
	if n := s.Tick(); n != 2 || ran != 2 {
		t.Fatalf("Tick ran %d (counter %d), want 2", n, ran)
	}
	if n := s.Tick(); n != 0 {
		t.Fatalf("second Tick ran %d, want 0", n)
	}
}

func TestTickerSchedulerCoalesces(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewTickerScheduler(ctx, 5*time.Millisecond)
	var ran atomic.Int32

	// Several schedules before the first tick collapse into one run.
	for i := 0; i < 5; i++ {
		s.ScheduleOnce(func() { ran.Add(1) })
	}

	deadline := time.Now().Add(time.Second)
	for ran.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	// Allow a few more ticks; the callback must not run again.
	time.Sleep(25 * time.Millisecond)
	if got := ran.Load(); got != 1 {
		t.Fatalf("callback ran %d times, want 1", got)
	}
}
