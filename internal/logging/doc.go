// Package logging configures slog output for the CLI and pipeline.
//
// It provides typed attribute constructors, standardized field names, a
// compact console handler with TTY-aware coloring, and helpers for deriving
// per-asset loggers from context annotations.
package logging
