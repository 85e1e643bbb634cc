package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"inkwire/internal/catalog"
	"inkwire/internal/config"
	"inkwire/internal/ledger"
	"inkwire/internal/logging"
	"inkwire/internal/notifications"
	"inkwire/internal/pipeline"
	"inkwire/internal/poller"
	"inkwire/internal/shelf"
)

// Daemon coordinates the pipeline and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *shelf.Store
	pipeline *pipeline.Orchestrator
	notifier notifications.Notifier

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status is the daemon runtime snapshot served over IPC.
type Status struct {
	Running      bool
	PID          int
	ShelfDBPath  string
	LockFilePath string
	Services     []poller.Status
	Queue        []ledger.BookProgress
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *shelf.Store, orch *pipeline.Orchestrator, notifier notifications.Notifier, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || orch == nil {
		return nil, errors.New("daemon requires config, store, and pipeline")
	}
	if notifier == nil {
		notifier = notifications.Noop{}
	}
	lockPath := filepath.Join(cfg.Paths.DataDir, "inkwired.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		pipeline: orch,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start runs the preflight checks, acquires the daemon lock, and launches
// the pipeline.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := preflight(d.cfg); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another inkwire daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.pipeline.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start pipeline: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.notifier.DaemonStarted(ctx)
	d.logger.Info("inkwire daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop halts the pipeline and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if err := d.pipeline.Stop(context.Background()); err != nil {
		d.logger.Warn("pipeline stop reported errors", logging.Error(err))
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.notifier.DaemonStopped(context.Background())
	d.logger.Info("inkwire daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		ShelfDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Services:     d.pipeline.ServiceStatus(),
		Queue:        d.pipeline.QueueStatus(),
	}
}

// Ping requests an immediate library check from the pipeline.
func (d *Daemon) Ping() {
	d.pipeline.EnqueuePing()
}

// DrainErrors returns and clears the pipeline's stage reports.
func (d *Daemon) DrainErrors() []pipeline.Report {
	return d.pipeline.DrainErrors()
}

// DrainPastes returns and clears the pipeline's completed pastes.
func (d *Daemon) DrainPastes() []catalog.Paste {
	return d.pipeline.DrainPastes()
}

// TestNotification sends a test push through the configured topic.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Test(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
