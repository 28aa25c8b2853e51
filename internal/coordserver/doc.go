// Package coordserver is the coordination centre's HTTP surface: report
// ingestion from field devices, the operator SSE event stream, mode control,
// and escalation management.
package coordserver
