// Package logging constructs the slog loggers used across the daemon and
// provides the attribute helpers and standardized field keys components log
// with.
package logging
