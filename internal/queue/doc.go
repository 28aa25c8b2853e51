// Package queue persists outbound safety reports in SQLite and drains them
// through channel transport adapters.
//
// The Store owns the outbox database: items are inserted by Enqueue with a
// kind-specific payload decoded exactly once, mutated only by the flush path,
// and removed only by PurgeSent. The Flusher serializes dispatch runs so
// connectivity events and timers can trigger flushes freely, orders items by
// priority so an SOS preempts routine check-ins, and bounds retries per item;
// exhausted items park as failed until an explicit RetryFailed.
//
// The database also hosts the panic_sessions table consumed by the sos
// package, so the agent keeps a single durable file. Schema changes bump the
// version in schema.go; agents delete the database to adopt the new schema.
package queue
