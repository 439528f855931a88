// Package logging assembles structured slog loggers and formatting helpers used
// across streampack services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with job IDs and step names. The package also provides a no-op logger
// for tests and wiring code that cannot fail.
package logging
