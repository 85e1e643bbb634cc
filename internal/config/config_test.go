package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"inkwire/internal/services"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if path == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Buyer.InflightLimit != defaultBuyerInflightLimit {
		t.Fatalf("expected default inflight limit, got %d", cfg.Buyer.InflightLimit)
	}
	if cfg.Ledger.GraceSeconds != defaultLedgerGraceSeconds {
		t.Fatalf("expected default grace, got %d", cfg.Ledger.GraceSeconds)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[buyer]\ninflight_limit = 5\n\n[ledger]\ngrace_seconds = 60\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Buyer.InflightLimit != 5 {
		t.Fatalf("expected override, got %d", cfg.Buyer.InflightLimit)
	}
	if cfg.Ledger.GraceSeconds != 60 {
		t.Fatalf("expected override, got %d", cfg.Ledger.GraceSeconds)
	}
	// Untouched sections keep defaults.
	if cfg.Library.Slots != defaultLibrarySlots {
		t.Fatalf("expected default slots, got %d", cfg.Library.Slots)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Paths.DataDir = "/tmp/inkwire-test"
	cfg.Paths.LogDir = "/tmp/inkwire-test/logs"
	cfg.Paths.SocketPath = "/tmp/inkwire-test/sock"
	cfg.Buyer.InflightLimit = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := WriteSample(path); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if _, err := WriteSample(path); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
}
