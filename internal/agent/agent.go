package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"beacon/internal/config"
	"beacon/internal/logging"
	"beacon/internal/queue"
	"beacon/internal/reporter"
	"beacon/internal/sos"
)

// Agent is the field daemon shell: it enforces single-instance execution,
// runs the flush loop, and owns the panic coordinator and location reporter.
type Agent struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *queue.Store
	flusher     *queue.Flusher
	coordinator *sos.Coordinator
	reporter    *reporter.Reporter

	lockPath     string
	lock         *flock.Flock
	connectivity *connectivityMonitor

	running atomic.Bool
	kick    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status is a point-in-time view of the agent for the CLI.
type Status struct {
	Running     bool                 `json:"running"`
	PanicState  string               `json:"panic_state"`
	SessionID   string               `json:"session_id,omitempty"`
	QueueStats  map[queue.Status]int `json:"queue_stats"`
	QueueDBPath string               `json:"queue_db_path"`
	LockPath    string               `json:"lock_path"`
	Netlink     bool                 `json:"netlink"`
	PID         int                  `json:"pid"`
}

// New constructs an agent with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, flusher *queue.Flusher, coordinator *sos.Coordinator, rep *reporter.Reporter, logger *slog.Logger) (*Agent, error) {
	if cfg == nil || store == nil || flusher == nil || coordinator == nil || logger == nil {
		return nil, errors.New("agent requires config, store, flusher, coordinator, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "beacond.lock")
	a := &Agent{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "agent"),
		store:       store,
		flusher:     flusher,
		coordinator: coordinator,
		reporter:    rep,
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
		kick:        make(chan struct{}, 1),
	}
	a.connectivity = newConnectivityMonitor(logger, func(string) { a.TriggerFlush() })
	return a, nil
}

// Start acquires the instance lock and launches the background loops.
func (a *Agent) Start(ctx context.Context) error {
	if a.running.Load() {
		return errors.New("agent already running")
	}

	ok, err := a.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another beacond instance is already running")
	}

	a.ctx, a.cancel = context.WithCancel(ctx)

	if err := a.connectivity.Start(a.ctx); err != nil {
		_ = a.lock.Unlock()
		a.cancel()
		return fmt.Errorf("start connectivity monitor: %w", err)
	}

	if a.reporter != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.reporter.Run()
		}()
	}

	a.wg.Add(1)
	go a.flushLoop()

	a.running.Store(true)
	a.logger.Info("beacond started",
		logging.String("lock", a.lockPath),
		logging.String("outbox", a.store.Path()))
	return nil
}

// Stop halts background loops and releases the instance lock.
func (a *Agent) Stop() {
	if !a.running.Load() {
		return
	}
	a.running.Store(false)

	a.connectivity.Stop()
	if a.reporter != nil {
		a.reporter.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if err := a.lock.Unlock(); err != nil {
		a.logger.Warn("release lock failed", logging.Error(err))
	}
	_ = os.Remove(a.lockPath)

	a.logger.Info("beacond stopped")
}

// TriggerFlush schedules a flush cycle without blocking. Kicks arriving while
// one is already pending coalesce.
func (a *Agent) TriggerFlush() {
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

// FlushNow runs a flush cycle synchronously and returns the sent count.
func (a *Agent) FlushNow(ctx context.Context) (int, error) {
	return a.flusher.Flush(ctx)
}

// PanicActivate starts a panic session.
func (a *Agent) PanicActivate(ctx context.Context) (*sos.Session, error) {
	session, err := a.coordinator.Activate(ctx)
	if err != nil {
		return nil, err
	}
	// Push the alert out immediately rather than waiting for the timer.
	a.TriggerFlush()
	return session, nil
}

// PanicDeactivate resolves the active panic session.
func (a *Agent) PanicDeactivate(ctx context.Context) error {
	if err := a.coordinator.Deactivate(ctx); err != nil {
		return err
	}
	a.TriggerFlush()
	return nil
}

// QueueStats returns outbox counts by status.
func (a *Agent) QueueStats(ctx context.Context) (map[queue.Status]int, error) {
	return a.store.Stats(ctx)
}

// RetryFailed returns failed items to the pending pool.
func (a *Agent) RetryFailed(ctx context.Context) (int64, error) {
	updated, err := a.store.RetryFailed(ctx)
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		a.TriggerFlush()
	}
	return updated, nil
}

// PurgeSent removes delivered items from the outbox.
func (a *Agent) PurgeSent(ctx context.Context) (int64, error) {
	return a.store.PurgeSent(ctx)
}

// Status reports the agent's current state.
func (a *Agent) Status(ctx context.Context) Status {
	status := Status{
		Running:     a.running.Load(),
		PanicState:  string(a.coordinator.State()),
		SessionID:   a.coordinator.ActiveSessionID(),
		QueueDBPath: a.store.Path(),
		LockPath:    a.lockPath,
		Netlink:     a.connectivity.Running(),
		PID:         os.Getpid(),
	}
	if stats, err := a.store.Stats(ctx); err == nil {
		status.QueueStats = stats
	}
	return status
}

func (a *Agent) flushLoop() {
	defer a.wg.Done()

	interval := time.Duration(a.cfg.Queue.FlushIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.flushOnce("timer")
		case <-a.kick:
			a.flushOnce("kick")
		}
	}
}

func (a *Agent) flushOnce(trigger string) {
	sent, err := a.flusher.Flush(a.ctx)
	if err != nil {
		a.logger.Error("flush cycle failed",
			logging.String("trigger", trigger),
			logging.Error(err))
		return
	}
	if sent > 0 {
		a.logger.Info("flush cycle complete",
			logging.String("trigger", trigger),
			logging.Int("sent", sent))
	}
}
