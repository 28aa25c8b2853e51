package testsupport

import (
	"context"
	"testing"

	"beacon/internal/config"
	"beacon/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Enqueue inserts a check-in item for tests using the provided store.
func Enqueue(t testing.TB, store *queue.Store, payload queue.Payload, priority int, channel queue.Channel, maxAttempts int) int64 {
	t.Helper()

	id, err := store.Enqueue(context.Background(), payload, priority, channel, maxAttempts)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return id
}
