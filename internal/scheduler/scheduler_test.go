package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsInvalidInput(t *testing.T) {
	noop := func(context.Context) {}

	if _, err := New("", noop, nil); err == nil {
		t.Fatal("expected error for empty schedule")
	}
	if _, err := New("every now and then", noop, nil); err == nil {
		t.Fatal("expected error for unparsable schedule")
	}
	if _, err := New("@every 1h", nil, nil); err == nil {
		t.Fatal("expected error for nil job")
	}
}

func TestStartRunsImmediately(t *testing.T) {
	ran := make(chan struct{}, 1)
	s, err := New("@every 1h", func(context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop(context.Background())

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("expected the job to run right after start")
	}
}

func TestStartSkipsCancelledContext(t *testing.T) {
	var calls atomic.Int32
	s, err := New("@every 1h", func(context.Context) { calls.Add(1) }, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	s.Stop(context.Background())

	if calls.Load() != 0 {
		t.Fatalf("expected no runs after cancellation, got %d", calls.Load())
	}
}

func TestStopWaitsForRunningJob(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	core, logs := observer.New(zap.InfoLevel)
	s, err := New("@every 1h", func(context.Context) {
		close(started)
		<-release
		finished.Store(true)
	}, zap.New(core))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-started

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	s.Stop(context.Background())

	if !finished.Load() {
		t.Fatal("expected Stop to wait for the running job")
	}
	if logs.FilterMessage("scheduler stopped").Len() != 1 {
		t.Fatalf("expected stop to be logged, got %v", logs.All())
	}
}
