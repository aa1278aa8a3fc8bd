// Package logging configures the process-wide slog logger for valkey-search.
//
// Logs are JSON lines on stderr. When a file path is configured, they are
// also written to a size-rotated file so a long-running `watch` keeps a
// bounded history.
package logging
