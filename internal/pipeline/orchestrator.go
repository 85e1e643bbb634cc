package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"inkwire/internal/buyer"
	"inkwire/internal/catalog"
	"inkwire/internal/config"
	"inkwire/internal/discovery"
	"inkwire/internal/ledger"
	"inkwire/internal/logging"
	"inkwire/internal/notifications"
	"inkwire/internal/pastebin"
	"inkwire/internal/poller"
	"inkwire/internal/publisher"
	"inkwire/internal/services"
	"inkwire/internal/sourcesite"
	"inkwire/internal/watcher"
)

// Store is the persistence surface the pipeline's stages consume. The shelf
// store satisfies it.
type Store interface {
	watcher.BookStore
	watcher.CredentialStore
	discovery.Store
	buyer.CredentialStore
	buyer.ChapterStore
	publisher.BookResolver
}

// Report is one stage failure surfaced to the frontend.
type Report struct {
	Component  string
	Message    string
	OccurredAt time.Time
}

// Orchestrator owns the progress ledger and drives the stage handoffs on a
// fixed tick. Stage errors are forwarded to the frontend error stream; they
// never halt the loop.
type Orchestrator struct {
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Notifier

	ledger    *ledger.Ledger
	watcher   *watcher.Watcher
	discovery *discovery.Discoverer
	buyer     *buyer.Buyer
	publisher *publisher.Publisher

	mu      sync.Mutex
	reports []Report
	pastes  []catalog.Paste
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New wires the stages over the shared boundaries.
func New(cfg *config.Config, store Store, src sourcesite.Client, pastes pastebin.Client, notifier notifications.Notifier, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "orchestrator"),
		notifier:  notifier,
		ledger:    ledger.New(cfg.LedgerGrace()),
		watcher:   watcher.New(cfg, src, store, store, logger),
		discovery: discovery.New(cfg, src, store, logger),
		buyer:     buyer.New(cfg, src, store, store, logger),
		publisher: publisher.New(cfg, pastes, store, logger),
	}
}

func (o *Orchestrator) stages() []poller.Service {
	return []poller.Service{o.watcher, o.discovery, o.buyer, o.publisher}
}

// Start launches every stage loop and the orchestrator tick.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return services.Wrap(services.ErrValidation, "orchestrator", "start", "already running", nil)
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.running = true
	o.cancel = cancel
	o.done = make(chan struct{})
	done := o.done
	o.mu.Unlock()

	for _, stage := range o.stages() {
		if err := stage.Start(runCtx); err != nil {
			cancel()
			return err
		}
	}

	go o.loop(runCtx, done)
	o.logger.Info("pipeline started", logging.String(logging.FieldEventType, "pipeline_started"))
	return nil
}

// Stop halts the tick loop and every stage, bounded by the configured stop
// timeout per service.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return services.Wrap(services.ErrValidation, "orchestrator", "stop", "not running", nil)
	}
	cancel := o.cancel
	done := o.done
	o.running = false
	o.cancel = nil
	o.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(o.cfg.StopTimeout()):
		o.logger.Warn("tick loop did not settle before deadline",
			logging.String(logging.FieldEventType, "stop_timeout"))
	}

	var firstErr error
	for _, stage := range o.stages() {
		if err := stage.Stop(o.cfg.StopTimeout()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	o.buyer.Shutdown(ctx)
	o.logger.Info("pipeline stopped", logging.String(logging.FieldEventType, "pipeline_stopped"))
	return firstErr
}

// Running reports whether the pipeline is active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *Orchestrator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(o.cfg.OrchestratorTick())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// Tick performs one handoff pass across the stages.
func (o *Orchestrator) Tick(ctx context.Context) {
	updated, err := o.watcher.Drain()
	o.forward(ctx, o.watcher.Name(), err)
	for _, book := range updated {
		if o.ledger.Seen(book) {
			continue
		}
		o.ledger.Track(book)
		o.discovery.Enqueue(book)
	}

	stubs, err := o.discovery.Drain()
	o.forward(ctx, o.discovery.Name(), err)
	if len(stubs) > 0 {
		o.ledger.RecordStubs(stubs)
		o.buyer.Enqueue(stubs...)
	}

	chapters, err := o.buyer.Drain()
	o.forward(ctx, o.buyer.Name(), err)
	for _, ch := range chapters {
		o.ledger.MarkBought(ch.BookID, ch.ID)
		o.ledger.MarkQueued(ch.BookID, ch.ID)
	}
	o.publisher.Enqueue(chapters...)

	pastes, err := o.publisher.Drain()
	o.forward(ctx, o.publisher.Name(), err)
	for _, paste := range pastes {
		for _, chapterID := range paste.ChapterIDs {
			o.ledger.MarkPublished(paste.BookID, chapterID)
		}
		o.mu.Lock()
		o.pastes = append(o.pastes, paste)
		o.mu.Unlock()
		o.notifier.PastePublished(ctx, paste)
	}

	if removed := o.ledger.Cleanup(time.Now()); removed > 0 {
		o.logger.Debug("ledger entries cleaned",
			logging.Int("removed", removed),
			logging.String(logging.FieldEventType, "ledger_cleanup"),
		)
	}
}

// forward turns a stage error into a frontend report and a notification.
func (o *Orchestrator) forward(ctx context.Context, component string, err error) {
	if err == nil {
		return
	}
	o.mu.Lock()
	o.reports = append(o.reports, Report{
		Component:  component,
		Message:    err.Error(),
		OccurredAt: time.Now(),
	})
	o.mu.Unlock()
	o.logger.Warn("stage reported errors",
		logging.String(logging.FieldComponent, component),
		logging.Error(err),
		logging.String(logging.FieldEventType, "stage_error"),
	)
	o.notifier.ReportError(ctx, component, err)
}

// EnqueuePing requests an immediate library check: the watcher loop is woken
// to run a sweep now rather than at its next interval.
func (o *Orchestrator) EnqueuePing() {
	o.watcher.Enqueue(watcher.Ping{})
	o.watcher.Wake()
}

// DrainErrors returns and clears the accumulated stage reports.
func (o *Orchestrator) DrainErrors() []Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	reports := o.reports
	o.reports = nil
	return reports
}

// DrainPastes returns and clears the completed pastes.
func (o *Orchestrator) DrainPastes() []catalog.Paste {
	o.mu.Lock()
	defer o.mu.Unlock()
	pastes := o.pastes
	o.pastes = nil
	return pastes
}

// ServiceStatus reports each stage's last run and state.
func (o *Orchestrator) ServiceStatus() []poller.Status {
	stages := o.stages()
	out := make([]poller.Status, 0, len(stages))
	for _, stage := range stages {
		out = append(out, poller.Snapshot(stage))
	}
	return out
}

// QueueStatus reports per-book chapter-stage counts from the ledger.
func (o *Orchestrator) QueueStatus() []ledger.BookProgress {
	return o.ledger.StageCounts()
}
