package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"beacon/internal/logging"
)

// Adapter is the uniform transport contract a channel implements. Attempt
// reports success only; transport errors are absorbed by the adapter and
// surface as false.
type Adapter interface {
	Name() Channel
	Attempt(ctx context.Context, item *Item) bool
}

// Flusher drains eligible queue items through registered channel adapters.
// Concurrent Flush calls are serialized; triggers (timers, connectivity
// events) may fire freely without overlapping dispatch runs.
type Flusher struct {
	store    *Store
	logger   *slog.Logger
	adapters map[Channel]Adapter

	mu sync.Mutex
}

// NewFlusher constructs a Flusher over the given store and adapters.
func NewFlusher(store *Store, logger *slog.Logger, adapters ...Adapter) *Flusher {
	byChannel := make(map[Channel]Adapter, len(adapters))
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		byChannel[adapter.Name()] = adapter
	}
	return &Flusher{
		store:    store,
		logger:   logging.NewComponentLogger(logger, "queue-flush"),
		adapters: byChannel,
	}
}

// Flush dispatches every eligible item once, in priority order, and returns
// the number delivered. Adapter panics count as failed attempts; Flush only
// returns an error when the store itself is unusable.
func (f *Flusher) Flush(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.store.Eligible(ctx)
	if err != nil {
		return 0, fmt.Errorf("select eligible items: %w", err)
	}

	sent := 0
	for _, item := range items {
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		default:
		}

		adapter, ok := f.adapters[item.Channel]
		if !ok {
			f.logger.Warn("no adapter registered for channel",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String(logging.FieldChannel, string(item.Channel)),
				logging.String(logging.FieldEventType, "adapter_missing"),
			)
			continue
		}

		if err := f.store.BeginAttempt(ctx, item.ID); err != nil {
			f.logger.Warn("skipping item that is no longer eligible",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.Error(err),
			)
			continue
		}

		success := f.attempt(ctx, adapter, item)
		if err := f.store.FinishAttempt(ctx, item.ID, success); err != nil {
			return sent, fmt.Errorf("record attempt outcome: %w", err)
		}

		if success {
			sent++
			f.logger.Info("item delivered",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String("kind", string(item.Kind)),
				logging.String(logging.FieldChannel, string(item.Channel)),
			)
		} else {
			f.logger.Warn("dispatch attempt failed",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String(logging.FieldChannel, string(item.Channel)),
				logging.Int("attempt", item.Attempts+1),
				logging.Int("max_attempts", item.MaxAttempts),
				logging.String(logging.FieldEventType, "dispatch_failed"),
			)
		}
	}

	return sent, nil
}

// attempt shields the flush loop from adapter panics: the adapter contract is
// non-throwing, but a misbehaving transport must cost one attempt, not the loop.
func (f *Flusher) attempt(ctx context.Context, adapter Adapter, item *Item) (success bool) {
	defer func() {
		if r := recover(); r != nil {
			success = false
			f.logger.Error("adapter panicked",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String(logging.FieldChannel, string(item.Channel)),
				logging.Any("panic", r),
				logging.String(logging.FieldEventType, "adapter_panic"),
				logging.String(logging.FieldErrorHint, "report this adapter bug"),
			)
		}
	}()
	return adapter.Attempt(ctx, item)
}
