// Package logging provides structured logging for Gatehouse.
//
// It wraps the standard library's log/slog with configuration-driven
// level filtering, output format selection (JSON or text), and default
// service fields attached to every record.
package logging
