package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"beacon/internal/config"
	"beacon/internal/device"
	"beacon/internal/logging"
	"beacon/internal/queue"
	"beacon/internal/reporter"
	"beacon/internal/sos"
	"beacon/internal/testsupport"
)

type countingAdapter struct {
	mu       sync.Mutex
	channel  queue.Channel
	attempts int
}

func (a *countingAdapter) Name() queue.Channel { return a.channel }

func (a *countingAdapter) Attempt(context.Context, *queue.Item) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts++
	return true
}

func (a *countingAdapter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts
}

type failingAdapter struct{ channel queue.Channel }

func (a failingAdapter) Name() queue.Channel { return a.channel }

func (a failingAdapter) Attempt(context.Context, *queue.Item) bool { return false }

func newTestAgent(t *testing.T, cfg *config.Config) (*Agent, *queue.Store, *countingAdapter) {
	t.Helper()

	store := testsupport.MustOpenStore(t, cfg)
	adapter := &countingAdapter{channel: queue.ChannelNetwork}
	flusher := queue.NewFlusher(store, logging.NewNop(), adapter, failingAdapter{channel: queue.ChannelSMS})

	coordinator := sos.NewCoordinator(sos.Options{
		Config:   cfg,
		Store:    sos.NewStore(store),
		Enqueuer: store,
		Logger:   logging.NewNop(),
	})

	agent, err := New(cfg, store, flusher, coordinator, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return agent, store, adapter
}

func TestStartEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _, _ := newTestAgent(t, cfg)
	second, _, _ := newTestAgent(t, cfg)

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance acquired the lock")
	}
}

func TestTriggerFlushDrainsQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// Long timer so only the kick can explain a flush.
	cfg.Queue.FlushIntervalSeconds = 3600
	agent, store, adapter := newTestAgent(t, cfg)
	ctx := context.Background()

	testsupport.Enqueue(t, store, queue.CheckinPayload{SubjectID: "subject-test"}, 0, queue.ChannelNetwork, 3)

	if err := agent.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer agent.Stop()

	agent.TriggerFlush()

	deadline := time.Now().Add(2 * time.Second)
	for adapter.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("kick never triggered a flush")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusSent] != 1 {
		t.Fatalf("sent = %d, want 1", stats[queue.StatusSent])
	}
}

func TestPanicActivateFlowsThroughAgent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.FlushIntervalSeconds = 3600
	agent, store, _ := newTestAgent(t, cfg)
	ctx := context.Background()

	if err := agent.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer agent.Stop()

	session, err := agent.PanicActivate(ctx)
	if err != nil {
		t.Fatalf("PanicActivate: %v", err)
	}
	if session == nil {
		t.Fatal("expected a session")
	}

	status := agent.Status(ctx)
	if status.PanicState != string(sos.StateActive) || status.SessionID != session.ID {
		t.Fatalf("status = %+v", status)
	}

	if err := agent.PanicDeactivate(ctx); err != nil {
		t.Fatalf("PanicDeactivate: %v", err)
	}
	if got := agent.Status(ctx).PanicState; got != string(sos.StateIdle) {
		t.Fatalf("panic state = %s, want idle", got)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("panic session enqueued nothing")
	}
}

func TestRetryFailedAndPurgeSent(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(1))
	cfg.Queue.FlushIntervalSeconds = 3600
	agent, store, _ := newTestAgent(t, cfg)
	ctx := context.Background()

	id := testsupport.Enqueue(t, store, queue.CheckinPayload{SubjectID: "subject-test"}, 0, queue.ChannelSMS, 1)

	// The SMS adapter always fails, so one flush exhausts the single
	// attempt and parks the item as failed.
	if _, err := agent.FlushNow(ctx); err != nil {
		t.Fatalf("FlushNow: %v", err)
	}
	item, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if item.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", item.Status)
	}

	updated, err := agent.RetryFailed(ctx)
	if err != nil || updated != 1 {
		t.Fatalf("RetryFailed: updated=%d err=%v", updated, err)
	}
	item, err = store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID after retry: %v", err)
	}
	if item.Status != queue.StatusPending || item.Attempts != 0 {
		t.Fatalf("item = %+v, want pending with zero attempts", item)
	}

	// Deliverable item for the purge path.
	testsupport.Enqueue(t, store, queue.CheckinPayload{SubjectID: "subject-test"}, 0, queue.ChannelNetwork, 3)
	if _, err := agent.FlushNow(ctx); err != nil {
		t.Fatalf("second FlushNow: %v", err)
	}
	removed, err := agent.PurgeSent(ctx)
	if err != nil {
		t.Fatalf("PurgeSent: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
}

func TestStopIsIdempotentAndReleasesLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	agent, _, _ := newTestAgent(t, cfg)

	if err := agent.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	agent.Stop()
	agent.Stop()

	// Lock released: a fresh agent can start.
	replacement, _, _ := newTestAgent(t, cfg)
	if err := replacement.Start(context.Background()); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	replacement.Stop()
}

type silentSubmitter struct{}

func (silentSubmitter) SubmitStatus(context.Context, queue.StatusPayload) error { return nil }

func TestPanicActivateArmsWiredReporter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.FlushIntervalSeconds = 3600
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	rep := reporter.New(cfg.Subject.ID, device.UnavailableSource{}, silentSubmitter{}, logger)
	flusher := queue.NewFlusher(store, logger, &countingAdapter{channel: queue.ChannelNetwork})
	coordinator := sos.NewCoordinator(sos.Options{
		Config:   cfg,
		Store:    sos.NewStore(store),
		Enqueuer: store,
		Reporter: rep,
		Logger:   logger,
	})
	agent, err := New(cfg, store, flusher, coordinator, rep, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := agent.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer agent.Stop()

	if _, err := agent.PanicActivate(ctx); err != nil {
		t.Fatalf("PanicActivate: %v", err)
	}
	if !rep.Armed() {
		t.Fatal("activation should arm the reporter")
	}

	if err := agent.PanicDeactivate(ctx); err != nil {
		t.Fatalf("PanicDeactivate: %v", err)
	}
	if rep.Armed() {
		t.Fatal("deactivation should disarm the reporter")
	}
}
