package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"inkwire/internal/services"
)

func newTestBase() *Base[int, int] {
	return NewBase[int, int]("test-service", 10*time.Millisecond, nil)
}

func TestEnqueueDrainUnion(t *testing.T) {
	b := newTestBase()
	b.Enqueue(1, 2)
	b.Enqueue(3)

	got := b.TakeInput()
	if len(got) != 3 {
		t.Fatalf("expected 3 inputs, got %d", len(got))
	}
	if more := b.TakeInput(); len(more) != 0 {
		t.Fatalf("input buffer should be cleared, got %d", len(more))
	}

	b.Emit(10, 20)
	b.Emit(30)
	items, err := b.Drain()
	if err != nil {
		t.Fatalf("unexpected drain error: %v", err)
	}
	seen := map[int]bool{}
	for _, item := range items {
		seen[item] = true
	}
	for _, want := range []int{10, 20, 30} {
		if !seen[want] {
			t.Fatalf("drained set missing %d: %v", want, items)
		}
	}
	if again, _ := b.Drain(); len(again) != 0 {
		t.Fatalf("output buffer should be cleared, got %d", len(again))
	}
}

func TestDrainSingleErrorPassedThrough(t *testing.T) {
	b := newTestBase()
	boom := errors.New("boom")
	b.RecordError(boom)
	_, err := b.Drain()
	if !errors.Is(err, boom) {
		t.Fatalf("expected the recorded error, got %v", err)
	}
	if _, err := b.Drain(); err != nil {
		t.Fatalf("errors should be cleared after drain: %v", err)
	}
}

func TestDrainAggregatesErrors(t *testing.T) {
	b := newTestBase()
	first := errors.New("first")
	second := errors.New("second")
	b.RecordError(first)
	b.RecordError(second)
	_, err := b.Drain()
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("expected joined errors, got %v", err)
	}
}

func TestStartTwiceFails(t *testing.T) {
	b := newTestBase()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	step := func(context.Context) error { return nil }
	if err := b.Start(ctx, step); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := b.Start(ctx, step); err == nil {
		t.Fatal("second start should fail")
	}
	if err := b.Stop(time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStopWhenStoppedFails(t *testing.T) {
	b := newTestBase()
	err := b.Stop(time.Second)
	if err == nil {
		t.Fatal("stopping a stopped service should fail")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestLoopRecordsFailureAndRecovers(t *testing.T) {
	b := newTestBase()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	stepped := make(chan int, 16)
	step := func(context.Context) error {
		calls++
		stepped <- calls
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}
	if err := b.Start(ctx, step); err != nil {
		t.Fatalf("start: %v", err)
	}

	// First tick fails, second succeeds.
	<-stepped
	<-stepped
	deadline := time.After(time.Second)
	for b.State() != StateCompleted {
		select {
		case <-deadline:
			t.Fatalf("service never completed, state %v", b.State())
		case <-time.After(time.Millisecond):
		}
	}
	if b.NeedsRestart() {
		t.Fatal("restart flag should clear after a successful step")
	}
	if b.LastRun().IsZero() {
		t.Fatal("last-run timestamp should advance")
	}
	if err := b.Stop(time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := b.Drain(); err == nil {
		t.Fatal("expected the recorded step failure from drain")
	}
}

func TestWakeRunsStepBeforeTick(t *testing.T) {
	// An interval far beyond the test deadline: only a wake can trigger steps.
	b := NewBase[int, int]("test-service", time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stepped := make(chan struct{}, 16)
	if err := b.Start(ctx, func(context.Context) error {
		stepped <- struct{}{}
		return nil
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	b.Wake()
	select {
	case <-stepped:
	case <-time.After(time.Second):
		t.Fatal("wake did not trigger a step ahead of the interval")
	}

	if err := b.Stop(time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStopReportsCancellation(t *testing.T) {
	b := newTestBase()
	ctx := context.Background()
	if err := b.Start(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := b.Stop(time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	_, err := b.Drain()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected recorded cancellation, got %v", err)
	}
}
