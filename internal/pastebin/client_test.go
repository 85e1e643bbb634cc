package pastebin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwire/internal/config"
	"inkwire/internal/services"
)

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.Default()
	cfg.Paste.BaseURL = srv.URL
	cfg.Paste.APIKey = "key"
	return NewHTTPClient(&cfg)
}

func TestPublish(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("title") != "seas #1" || r.PostForm.Get("text") == "" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing api key header")
		}
		_, _ = w.Write([]byte(`{"url":"https://paste/abc"}`))
	}))

	url, err := client.Publish(context.Background(), "seas #1", "body")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if url != "https://paste/abc" {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestPublishFailureIsTransient(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "over quota", http.StatusServiceUnavailable)
	}))
	if _, err := client.Publish(context.Background(), "t", "x"); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestPublishRejectionWithoutURL(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"spam filter"}`))
	}))
	if _, err := client.Publish(context.Background(), "t", "x"); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
