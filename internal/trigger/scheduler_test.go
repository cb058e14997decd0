package trigger

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRejectsNonPositiveInterval(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.Every("noop", 0, func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestSchedulerRunsJobUntilCanceled(t *testing.T) {
	s := NewScheduler(nil)
	var runs atomic.Int32
	if err := s.Every("count", time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("every: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if runs.Load() < 1 {
		t.Fatalf("expected the job to run at least once")
	}
}
