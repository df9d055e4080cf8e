// Package logging builds the slog loggers used across applyq and defines the
// standardized structured field keys (component, job_id, run_id, event_type,
// error_hint, impact) that keep log output queryable.
//
// Console output is a compact single-line format for interactive use; the JSON
// format is intended for log shipping. WarnWithContext and ErrorWithContext
// enforce that warnings and errors always carry an event type and an operator
// hint.
package logging
