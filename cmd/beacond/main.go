package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"beacon/internal/agent"
	"beacon/internal/channel"
	"beacon/internal/config"
	"beacon/internal/device"
	"beacon/internal/ipc"
	"beacon/internal/logging"
	"beacon/internal/preflight"
	"beacon/internal/queue"
	"beacon/internal/reporter"
	"beacon/internal/sos"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewForDir(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir, "beacond")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	results := preflight.RunAll(ctx, cfg)
	for _, result := range results {
		if !result.Passed {
			logger.Warn("preflight check failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
		}
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open outbox store", logging.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	networkClient := channel.NewClient(cfg)
	battery := device.NewSysfsBatteryProvider()
	sms := device.SMSSender(device.UnavailableSMS{})
	recorder := device.AudioRecorder(device.UnavailableRecorder{})
	location := device.LocationProvider(device.UnavailableLocation{})
	source := device.LocationSource(device.UnavailableSource{})

	rep := reporter.New(cfg.Subject.ID, source, networkClient, logger)

	flusher := queue.NewFlusher(store, logger,
		channel.NewNetworkAdapter(networkClient, logger),
		channel.NewSMSAdapter(sms, cfg.SMS.Recipient, logger),
		channel.NewMeshAdapter(logger),
	)

	coordinator := sos.NewCoordinator(sos.Options{
		Config:   cfg,
		Store:    sos.NewStore(store),
		Enqueuer: store,
		SMSBlast: channel.NewSMSAdapter(sms, cfg.SMS.Recipient, logger),
		Location: location,
		Battery:  battery,
		Recorder: recorder,
		Reporter: rep,
		Logger:   logger,
	})

	a, err := agent.New(cfg, store, flusher, coordinator, rep, logger)
	if err != nil {
		logger.Error("create agent", logging.Error(err))
		os.Exit(1)
	}

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), a, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		os.Exit(1)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer a.Stop()

	<-ctx.Done()
	logger.Info("beacond shutting down")
}
