package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"inkwire/internal/logging"
	"inkwire/internal/services"
)

// Base implements the queue plumbing and supervised loop shared by the
// concrete services. In is the item type accepted by Enqueue, Out the item
// type returned by Drain. Concrete services embed a *Base and provide Step.
type Base[In, Out any] struct {
	name     string
	interval time.Duration
	logger   *slog.Logger
	wake     chan struct{}

	mu           sync.Mutex
	inbox        []In
	outbox       []Out
	errs         []error
	lastRun      time.Time
	state        State
	needsRestart bool
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewBase constructs the shared service state.
func NewBase[In, Out any](name string, interval time.Duration, logger *slog.Logger) *Base[In, Out] {
	return &Base[In, Out]{
		name:     name,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, name),
		wake:     make(chan struct{}, 1),
	}
}

func (b *Base[In, Out]) Name() string { return b.name }

func (b *Base[In, Out]) Interval() time.Duration { return b.interval }

func (b *Base[In, Out]) Logger() *slog.Logger { return b.logger }

func (b *Base[In, Out]) LastRun() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRun
}

func (b *Base[In, Out]) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Base[In, Out]) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Enqueue appends items to the input buffer. It never blocks the caller.
func (b *Base[In, Out]) Enqueue(items ...In) {
	if len(items) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inbox = append(b.inbox, items...)
}

// Wake prompts the loop to run a step now instead of waiting for the next
// tick. Wakes during a running step coalesce into one extra run.
func (b *Base[In, Out]) Wake() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// TakeInput removes and returns everything enqueued since the last call.
func (b *Base[In, Out]) TakeInput() []In {
	b.mu.Lock()
	defer b.mu.Unlock()
	taken := b.inbox
	b.inbox = nil
	return taken
}

// Emit appends items to the output buffer for the next Drain.
func (b *Base[In, Out]) Emit(items ...Out) {
	if len(items) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outbox = append(b.outbox, items...)
}

// RecordError stores an error for the next Drain. Concrete steps use this
// for failures that should not abort the whole cycle.
func (b *Base[In, Out]) RecordError(err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs = append(b.errs, err)
}

// Drain returns and clears the output buffer together with any errors
// recorded since the previous drain: one error is returned as-is, several
// are joined. Callers decide whether errors are fatal or advisory.
func (b *Base[In, Out]) Drain() ([]Out, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.outbox
	b.outbox = nil
	errs := b.errs
	b.errs = nil
	switch len(errs) {
	case 0:
		return items, nil
	case 1:
		return items, errs[0]
	default:
		return items, errors.Join(errs...)
	}
}

// NeedsRestart reports whether the previous step failed; concrete services
// use it to re-submit in-process work instead of drawing new items.
func (b *Base[In, Out]) NeedsRestart() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.needsRestart
}

// Start launches the supervised polling loop around step. Starting a running
// service is an error, not a no-op.
func (b *Base[In, Out]) Start(ctx context.Context, step func(context.Context) error) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return services.Wrap(services.ErrValidation, b.name, "start", "service already running", nil)
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.running = true
	b.cancel = cancel
	b.done = make(chan struct{})
	done := b.done
	b.mu.Unlock()

	go b.loop(runCtx, step, done)
	return nil
}

// Stop cancels the loop and waits up to timeout for it to settle. Stopping a
// stopped service is an error; failing to settle in time is a timeout error.
func (b *Base[In, Out]) Stop(timeout time.Duration) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return services.Wrap(services.ErrValidation, b.name, "stop", "service not running", nil)
	}
	cancel := b.cancel
	done := b.done
	b.running = false
	b.cancel = nil
	b.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return services.Wrap(services.ErrTimeout, b.name, "stop", "loop did not settle before deadline", nil)
	}
}

func (b *Base[In, Out]) loop(ctx context.Context, step func(context.Context) error, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.recordCancellation(ctx.Err())
			return
		case <-ticker.C:
		case <-b.wake:
		}

		b.setState(StateRunning)
		err := step(ctx)
		switch {
		case err == nil:
			b.completeRun()
		case errors.Is(err, context.Canceled):
			b.RecordError(err)
			b.setState(StateFailed)
			return
		default:
			b.RecordError(err)
			b.failRun()
			b.logger.Warn("step failed; will retry on next tick",
				logging.Error(err),
				logging.String(logging.FieldEventType, "step_failed"),
			)
		}
	}
}

func (b *Base[In, Out]) recordCancellation(err error) {
	if err == nil {
		err = context.Canceled
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs = append(b.errs, err)
	b.state = StateFailed
}

func (b *Base[In, Out]) completeRun() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastRun = time.Now()
	b.needsRestart = false
	b.state = StateCompleted
}

func (b *Base[In, Out]) failRun() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.needsRestart = true
	b.state = StateFailed
}

func (b *Base[In, Out]) setState(state State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
}
