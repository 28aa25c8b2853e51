package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"beacon/internal/config"
	"beacon/internal/coordserver"
	"beacon/internal/escalate"
	"beacon/internal/fanout"
	"beacon/internal/logging"
	"beacon/internal/notify"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewForDir(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir, "coordd")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := escalate.OpenStore(cfg)
	if err != nil {
		logger.Error("open coordination store", logging.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	hub := fanout.NewHub(logger)
	notifier := notify.NewService(cfg)
	engine := escalate.NewEngine(cfg, store, hub, notifier, logger)
	server := coordserver.New(cfg, store, engine, hub, logger)

	scanInterval := time.Duration(cfg.Escalation.ScanIntervalSeconds) * time.Second
	stopChecks := engine.StartPeriodicChecks(scanInterval)
	defer stopChecks()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.ListenAndServe(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("coordination server failed", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("coordd shut down")
}
