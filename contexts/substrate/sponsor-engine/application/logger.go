package application

import "log/slog"

// ResolveLogger returns logger, or slog.Default() if logger is nil.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
