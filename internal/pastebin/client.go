package pastebin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"inkwire/internal/config"
	"inkwire/internal/services"
)

// Client publishes text and returns the resulting paste URL.
type Client interface {
	Publish(ctx context.Context, title, text string) (string, error)
}

// HTTPClient posts pastes to the configured service endpoint.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient constructs the paste uploader from configuration.
func NewHTTPClient(cfg *config.Config) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.Paste.BaseURL,
		apiKey:  cfg.Paste.APIKey,
		client:  &http.Client{Timeout: time.Duration(cfg.Paste.RequestTimeout) * time.Second},
	}
}

type pasteResponse struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Publish uploads one paste. Failures wrap services.ErrTransient so the
// publisher resubmits the job on the next cycle.
func (c *HTTPClient) Publish(ctx context.Context, title, text string) (string, error) {
	form := url.Values{}
	form.Set("title", title)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/paste",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build paste request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "pastebin", "publish", title, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", services.Wrap(services.ErrTransient, "pastebin", "publish",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	var decoded pasteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", services.Wrap(services.ErrTransient, "pastebin", "publish", "undecodable response", err)
	}
	if decoded.URL == "" {
		return "", services.Wrap(services.ErrTransient, "pastebin", "publish",
			fmt.Sprintf("service rejected paste: %s", decoded.Error), nil)
	}
	return decoded.URL, nil
}
