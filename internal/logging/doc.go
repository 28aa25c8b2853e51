// Package logging assembles structured slog loggers and attribute helpers used
// across beacon components.
//
// It centralizes level and output plumbing for the agent and coordination
// server, defines the standardized field keys (component, subject_id, channel,
// event_type) that keep log lines queryable, and provides a no-op logger for
// tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the system.
package logging
