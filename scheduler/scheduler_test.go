package scheduler

import (
	"context"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"
)

func TestStartRequiresSchedule(t *testing.T) {
	s := New(func(ctx context.Context) error { return nil }, log.New(io.Discard, "", 0))
	if err := s.Start(context.Background(), "", 0); err == nil {
		t.Error("expected error without cron expression or interval")
	}
}

func TestStartRejectsBadCron(t *testing.T) {
	s := New(func(ctx context.Context) error { return nil }, log.New(io.Discard, "", 0))
	if err := s.Start(context.Background(), "not a cron", 0); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestIntervalRuns(t *testing.T) {
	var runs atomic.Int32
	s := New(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx, "", 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("no scheduled run within deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTriggerNow(t *testing.T) {
	var runs atomic.Int32
	s := New(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, log.New(io.Discard, "", 0))

	if err := s.TriggerNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	if runs.Load() != 1 {
		t.Errorf("runs = %d; want 1", runs.Load())
	}
}
