package config

import (
	"fmt"

	"inkwire/internal/services"
)

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{c.Paths.DataDir != "", "paths.data_dir must be set"},
		{c.Paths.LogDir != "", "paths.log_dir must be set"},
		{c.Paths.SocketPath != "", "paths.socket_path must be set"},
		{c.Library.Slots > 0, "library.slots must be positive"},
		{c.Library.AccountRetries > 0, "library.account_retries must be positive"},
		{c.Buyer.InflightLimit > 0, "buyer.inflight_limit must be positive"},
		{c.Buyer.AccountRetries > 0, "buyer.account_retries must be positive"},
		{c.Buyer.PoolSessionSeconds > 0, "buyer.pool_session_seconds must be positive"},
		{c.Ledger.GraceSeconds >= 0, "ledger.grace_seconds must not be negative"},
		{c.Workflow.OrchestratorTickSeconds > 0, "workflow.orchestrator_tick_seconds must be positive"},
		{c.Workflow.WatcherIntervalSeconds > 0, "workflow.watcher_interval_seconds must be positive"},
		{c.Workflow.DiscoveryIntervalSeconds > 0, "workflow.discovery_interval_seconds must be positive"},
		{c.Workflow.BuyerIntervalSeconds > 0, "workflow.buyer_interval_seconds must be positive"},
		{c.Workflow.PublisherIntervalSeconds > 0, "workflow.publisher_interval_seconds must be positive"},
		{c.Workflow.StopTimeoutSeconds > 0, "workflow.stop_timeout_seconds must be positive"},
		{c.Source.RequestTimeout > 0, "source.request_timeout must be positive"},
		{c.Source.FetchRetries > 0, "source.fetch_retries must be positive"},
	}
	for _, check := range checks {
		if !check.ok {
			return services.Wrap(services.ErrConfiguration, "config", "validate", check.msg, nil)
		}
	}
	if c.Logging.Format != "" && c.Logging.Format != "console" && c.Logging.Format != "json" {
		return services.Wrap(services.ErrConfiguration, "config", "validate",
			fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format), nil)
	}
	return nil
}
