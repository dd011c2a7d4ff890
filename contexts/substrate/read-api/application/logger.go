// Package application wires the Read API's query use case: role
// resolution, rate limiting, access logging, and role-filtered projection
// reads (spec §4.6).
package application

import "log/slog"

// ResolveLogger returns logger, or slog.Default() if logger is nil.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
