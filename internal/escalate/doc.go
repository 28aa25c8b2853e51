// Package escalate holds the coordination centre's subject registry and
// escalation engine: ingest-driven escalations, the periodic missed-checkin
// scan, and the normal/crisis operation mode that tunes its threshold.
package escalate
