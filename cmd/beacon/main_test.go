package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"beacon/internal/agent"
	"beacon/internal/config"
	"beacon/internal/ipc"
	"beacon/internal/logging"
	"beacon/internal/queue"
	"beacon/internal/sos"
	"beacon/internal/testsupport"
)

type okAdapter struct{}

func (okAdapter) Name() queue.Channel { return queue.ChannelNetwork }

func (okAdapter) Attempt(context.Context, *queue.Item) bool { return true }

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Queue.FlushIntervalSeconds = 3600

	configPath := filepath.Join(t.TempDir(), "config.toml")
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

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

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, a, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	time.Sleep(50 * time.Millisecond)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		socketPath: socket,
		configPath: configPath,
	}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--socket", env.socketPath, "--config", env.configPath}, args...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("beacon %s: %v\noutput:\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestStatusCommandShowsAgentSections(t *testing.T) {
	env := setupCLITestEnv(t)

	output := env.run(t, "status")
	for _, want := range []string{"== Agent ==", "== Outbox ==", "Running", "pending", "outbox.db"} {
		if !strings.Contains(output, want) {
			t.Fatalf("status output missing %q:\n%s", want, output)
		}
	}
}

func TestFlushCommandReportsDeliveries(t *testing.T) {
	env := setupCLITestEnv(t)

	output := env.run(t, "flush")
	if !strings.Contains(output, "Nothing to deliver") {
		t.Fatalf("expected empty flush message, got:\n%s", output)
	}

	testsupport.Enqueue(t, env.store, queue.CheckinPayload{SubjectID: "subject-test"}, 0, queue.ChannelNetwork, 3)
	output = env.run(t, "flush")
	if !strings.Contains(output, "Delivered 1 item") {
		t.Fatalf("expected delivery message, got:\n%s", output)
	}
}

func TestPanicCommandsRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t)

	output := env.run(t, "panic", "activate")
	if !strings.Contains(output, "active; SOS queued") {
		t.Fatalf("expected activation message, got:\n%s", output)
	}

	output = env.run(t, "panic", "activate")
	if !strings.Contains(output, "already active") {
		t.Fatalf("expected duplicate activation message, got:\n%s", output)
	}

	output = env.run(t, "panic", "deactivate")
	if !strings.Contains(output, "resolved") {
		t.Fatalf("expected resolution message, got:\n%s", output)
	}

	output = env.run(t, "sessions")
	if !strings.Contains(output, "subject-test") || !strings.Contains(output, "resolved") {
		t.Fatalf("expected resolved session row, got:\n%s", output)
	}
}

func TestQueueListFiltersByStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	testsupport.Enqueue(t, env.store, queue.MessagePayload{SubjectID: "subject-test", Body: "hi"}, 0, queue.ChannelNetwork, 3)

	output := env.run(t, "queue", "list", "--status", "pending")
	if !strings.Contains(output, "message") {
		t.Fatalf("expected pending message row, got:\n%s", output)
	}

	output = env.run(t, "queue", "list", "--status", "sent")
	if !strings.Contains(output, "Outbox is empty") {
		t.Fatalf("expected empty listing, got:\n%s", output)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Server.APIToken = "super-secret"

	configPath := filepath.Join(t.TempDir(), "config.toml")
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--config", configPath, "config", "show"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out.String(), "super-secret") {
		t.Fatalf("config show leaked the API token:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "********") {
		t.Fatalf("config show should mask the API token:\n%s", out.String())
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample config: %v", err)
	}
	if !strings.Contains(string(data), "[subject]") {
		t.Fatalf("sample config missing subject section:\n%s", data)
	}

	cmd = newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}
}
