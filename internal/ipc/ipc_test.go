package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"beacon/internal/agent"
	"beacon/internal/ipc"
	"beacon/internal/logging"
	"beacon/internal/queue"
	"beacon/internal/sos"
	"beacon/internal/testsupport"
)

type okAdapter struct{}

func (okAdapter) Name() queue.Channel { return queue.ChannelNetwork }

func (okAdapter) Attempt(context.Context, *queue.Item) bool { return true }

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.FlushIntervalSeconds = 3600
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	flusher := queue.NewFlusher(store, logger, okAdapter{})
	coordinator := sos.NewCoordinator(sos.Options{
		Config:   cfg,
		Store:    sos.NewStore(store),
		Enqueuer: store,
		Logger:   logger,
	})
	a, err := agent.New(cfg, store, flusher, coordinator, nil, logger)
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := a.Start(ctx); err != nil {
		t.Fatalf("agent.Start: %v", err)
	}
	t.Cleanup(a.Stop)

	socket := filepath.Join(cfg.Paths.DataDir, "beacond.sock")
	srv, err := ipc.NewServer(ctx, socket, a, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("agent should report running")
	}
	if status.PanicState != string(sos.StateIdle) {
		t.Fatalf("panic state = %s, want idle", status.PanicState)
	}

	testsupport.Enqueue(t, store, queue.CheckinPayload{SubjectID: "subject-test"}, 0, queue.ChannelNetwork, 3)
	flushResp, err := client.Flush()
	if err != nil {
		t.Fatalf("Flush RPC failed: %v", err)
	}
	if flushResp.Sent != 1 {
		t.Fatalf("sent = %d, want 1", flushResp.Sent)
	}

	activate, err := client.PanicActivate()
	if err != nil {
		t.Fatalf("PanicActivate RPC failed: %v", err)
	}
	if !activate.Activated || activate.SessionID == "" {
		t.Fatalf("activation response = %+v", activate)
	}

	again, err := client.PanicActivate()
	if err != nil {
		t.Fatalf("second PanicActivate RPC failed: %v", err)
	}
	if again.Activated {
		t.Fatal("second activation must report Activated=false")
	}

	deactivate, err := client.PanicDeactivate()
	if err != nil {
		t.Fatalf("PanicDeactivate RPC failed: %v", err)
	}
	if !deactivate.Deactivated {
		t.Fatal("expected Deactivated=true")
	}

	stats, err := client.QueueStats()
	if err != nil {
		t.Fatalf("QueueStats RPC failed: %v", err)
	}
	if stats.Stats == nil {
		t.Fatal("expected stats map")
	}

	purge, err := client.PurgeSent()
	if err != nil {
		t.Fatalf("PurgeSent RPC failed: %v", err)
	}
	if purge.Removed < 1 {
		t.Fatalf("removed = %d, want at least 1", purge.Removed)
	}
}
