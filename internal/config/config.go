package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	SocketPath string `toml:"socket_path"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Source contains configuration for the source-site API.
type Source struct {
	BaseURL        string `toml:"base_url"`
	SourceTag      string `toml:"source_tag"`
	RequestTimeout int    `toml:"request_timeout"`
	FetchRetries   int    `toml:"fetch_retries"`
}

// Paste contains configuration for the paste-hosting service.
type Paste struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Pastes         bool   `toml:"pastes"`
	Errors         bool   `toml:"errors"`
}

// Library contains configuration for library mirroring.
type Library struct {
	Slots          int `toml:"slots"`
	AccountRetries int `toml:"account_retries"`
}

// Buyer contains configuration for the purchase orchestrator.
type Buyer struct {
	InflightLimit      int `toml:"inflight_limit"`
	AccountRetries     int `toml:"account_retries"`
	PoolSessionSeconds int `toml:"pool_session_seconds"`
}

// Ledger contains configuration for progress-ledger cleanup.
type Ledger struct {
	GraceSeconds int `toml:"grace_seconds"`
}

// Workflow contains daemon timing and intervals.
type Workflow struct {
	OrchestratorTickSeconds  int `toml:"orchestrator_tick_seconds"`
	WatcherIntervalSeconds   int `toml:"watcher_interval_seconds"`
	DiscoveryIntervalSeconds int `toml:"discovery_interval_seconds"`
	BuyerIntervalSeconds     int `toml:"buyer_interval_seconds"`
	PublisherIntervalSeconds int `toml:"publisher_interval_seconds"`
	StopTimeoutSeconds       int `toml:"stop_timeout_seconds"`
}

// Config is the root configuration document.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Source        Source        `toml:"source"`
	Paste         Paste         `toml:"paste"`
	Notifications Notifications `toml:"notifications"`
	Library       Library       `toml:"library"`
	Buyer         Buyer         `toml:"buyer"`
	Ledger        Ledger        `toml:"ledger"`
	Workflow      Workflow      `toml:"workflow"`
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	return "~/.config/inkwire/config.toml"
}

// Load reads the configuration at path (or the default location when path is
// empty), applies defaults, normalizes paths, and validates the result. A
// missing file yields the defaults rather than an error; the resolved path is
// returned either way.
func Load(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	resolved, err := ExpandPath(path)
	if err != nil {
		return nil, "", err
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, resolved, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults apply.
	default:
		return nil, resolved, fmt.Errorf("read config %s: %w", resolved, err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, resolved, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, resolved, err
	}
	return &cfg, resolved, nil
}

// WriteSample writes the embedded sample config to path, refusing to
// overwrite an existing file.
func WriteSample(path string) (string, error) {
	resolved, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(resolved); err == nil {
		return resolved, fmt.Errorf("config file already exists at %s", resolved)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return resolved, fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(sampleConfig), 0o644); err != nil {
		return resolved, fmt.Errorf("write sample config: %w", err)
	}
	return resolved, nil
}

// EnsureDirectories creates the data and log directories when absent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Interval helpers converting the stored seconds into durations.

func (c *Config) OrchestratorTick() time.Duration {
	return time.Duration(c.Workflow.OrchestratorTickSeconds) * time.Second
}

func (c *Config) WatcherInterval() time.Duration {
	return time.Duration(c.Workflow.WatcherIntervalSeconds) * time.Second
}

func (c *Config) DiscoveryInterval() time.Duration {
	return time.Duration(c.Workflow.DiscoveryIntervalSeconds) * time.Second
}

func (c *Config) BuyerInterval() time.Duration {
	return time.Duration(c.Workflow.BuyerIntervalSeconds) * time.Second
}

func (c *Config) PublisherInterval() time.Duration {
	return time.Duration(c.Workflow.PublisherIntervalSeconds) * time.Second
}

func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Workflow.StopTimeoutSeconds) * time.Second
}

func (c *Config) PoolSessionAge() time.Duration {
	return time.Duration(c.Buyer.PoolSessionSeconds) * time.Second
}

func (c *Config) LedgerGrace() time.Duration {
	return time.Duration(c.Ledger.GraceSeconds) * time.Second
}
