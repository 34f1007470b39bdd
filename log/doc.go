// Package log provides a thin, concurrency-safe wrapper around [log/slog]
// used by every component of the mex module.
//
// A [Logger] is an immutable value created with [Make] and reconfigured by
// deriving new values with [Logger.Wrap] or [Logger.With]. The package also
// maintains a process-wide default logger, reconfigured with [Config] and
// addressed through the package-level functions ([Debug], [Info], [Warn],
// [Error]).
//
// Two output formats are supported, [FormatText] and [FormatJSON]. An
// optional colorized pretty handler, intended for interactive terminals,
// replaces either format when enabled.
package log
