// Package config loads and validates the TOML configuration for the inkwire
// daemon and CLI. Every empirically tuned constant (retry rounds, pool
// session age, ledger grace period) is a field here rather than a hardcoded
// value.
package config
