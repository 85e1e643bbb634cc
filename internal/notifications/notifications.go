package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"inkwire/internal/catalog"
	"inkwire/internal/config"
	"inkwire/internal/logging"
)

// Notifier announces pipeline events. Delivery failures are logged, never
// propagated: notifications must not influence pipeline behavior.
type Notifier interface {
	PastePublished(ctx context.Context, paste catalog.Paste)
	ReportError(ctx context.Context, component string, err error)
	DaemonStarted(ctx context.Context)
	DaemonStopped(ctx context.Context)
	Test(ctx context.Context) error
}

// New returns an ntfy-backed notifier, or a no-op one when no topic is
// configured.
func New(cfg *config.Config, logger *slog.Logger) Notifier {
	if cfg.Notifications.NtfyTopic == "" {
		return Noop{}
	}
	return &ntfyNotifier{
		topic:  cfg.Notifications.NtfyTopic,
		pastes: cfg.Notifications.Pastes,
		errors: cfg.Notifications.Errors,
		client: &http.Client{Timeout: time.Duration(cfg.Notifications.RequestTimeout) * time.Second},
		logger: logging.NewComponentLogger(logger, "notifications"),
	}
}

// Noop drops every notification.
type Noop struct{}

func (Noop) PastePublished(context.Context, catalog.Paste) {}
func (Noop) ReportError(context.Context, string, error)    {}
func (Noop) DaemonStarted(context.Context)                 {}
func (Noop) DaemonStopped(context.Context)                 {}
func (Noop) Test(context.Context) error                    { return nil }

type ntfyNotifier struct {
	topic  string
	pastes bool
	errors bool
	client *http.Client
	logger *slog.Logger
}

func (n *ntfyNotifier) PastePublished(ctx context.Context, paste catalog.Paste) {
	if !n.pastes {
		return
	}
	title := fmt.Sprintf("Paste published for book %d", paste.BookID)
	body := fmt.Sprintf("chapters %d-%d\n%s", paste.FirstIndex, paste.LastIndex, paste.URL)
	n.send(ctx, title, body, "tada")
}

func (n *ntfyNotifier) ReportError(ctx context.Context, component string, err error) {
	if !n.errors || err == nil {
		return
	}
	n.send(ctx, fmt.Sprintf("Error in %s", component), err.Error(), "warning")
}

func (n *ntfyNotifier) DaemonStarted(ctx context.Context) {
	n.send(ctx, "inkwired started", "pipeline is running", "rocket")
}

func (n *ntfyNotifier) DaemonStopped(ctx context.Context) {
	n.send(ctx, "inkwired stopped", "pipeline is down", "stop_sign")
}

// Test sends a synchronous notification and reports delivery failure, used
// by the CLI to verify the topic.
func (n *ntfyNotifier) Test(ctx context.Context) error {
	return n.post(ctx, "inkwire test notification", "notifications are configured correctly", "white_check_mark")
}

func (n *ntfyNotifier) send(ctx context.Context, title, body, tags string) {
	if err := n.post(ctx, title, body, tags); err != nil {
		n.logger.Warn("notification delivery failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notify_failed"),
		)
	}
}

func (n *ntfyNotifier) post(ctx context.Context, title, body, tags string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.topic, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification: %w", err)
	}
	req.Header.Set("X-Title", title)
	req.Header.Set("X-Tags", tags)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}
	return nil
}
