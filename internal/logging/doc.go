// Package logging assembles structured slog loggers for meetexport.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context-aware helpers that tag log lines with the run and meeting being
// exported. A no-op logger is provided for tests and optional wiring.
package logging
