package config

const (
	defaultDataDir    = "~/.local/share/inkwire"
	defaultLogDir     = "~/.local/share/inkwire/logs"
	defaultSocketPath = "~/.local/share/inkwire/inkwired.sock"

	defaultLogLevel  = "info"
	defaultLogFormat = "console"

	defaultSourceTag      = "inkwire"
	defaultRequestTimeout = 15
	defaultFetchRetries   = 3

	defaultLibrarySlots          = 10
	defaultWatcherAccountRetries = 3

	defaultBuyerInflightLimit  = 30
	defaultBuyerAccountRetries = 10
	defaultPoolSessionSeconds  = 180

	defaultLedgerGraceSeconds = 300

	defaultOrchestratorTickSeconds  = 5
	defaultWatcherIntervalSeconds   = 20
	defaultDiscoveryIntervalSeconds = 10
	defaultBuyerIntervalSeconds     = 5
	defaultPublisherIntervalSeconds = 5
	defaultStopTimeoutSeconds       = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			SocketPath: defaultSocketPath,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Source: Source{
			SourceTag:      defaultSourceTag,
			RequestTimeout: defaultRequestTimeout,
			FetchRetries:   defaultFetchRetries,
		},
		Paste: Paste{
			RequestTimeout: defaultRequestTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Pastes:         true,
			Errors:         true,
		},
		Library: Library{
			Slots:          defaultLibrarySlots,
			AccountRetries: defaultWatcherAccountRetries,
		},
		Buyer: Buyer{
			InflightLimit:      defaultBuyerInflightLimit,
			AccountRetries:     defaultBuyerAccountRetries,
			PoolSessionSeconds: defaultPoolSessionSeconds,
		},
		Ledger: Ledger{
			GraceSeconds: defaultLedgerGraceSeconds,
		},
		Workflow: Workflow{
			OrchestratorTickSeconds:  defaultOrchestratorTickSeconds,
			WatcherIntervalSeconds:   defaultWatcherIntervalSeconds,
			DiscoveryIntervalSeconds: defaultDiscoveryIntervalSeconds,
			BuyerIntervalSeconds:     defaultBuyerIntervalSeconds,
			PublisherIntervalSeconds: defaultPublisherIntervalSeconds,
			StopTimeoutSeconds:       defaultStopTimeoutSeconds,
		},
	}
}
