package sos

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"beacon/internal/config"
	"beacon/internal/device"
	"beacon/internal/logging"
	"beacon/internal/queue"
)

// State tracks where the coordinator is in the panic lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateActivating   State = "activating"
	StateActive       State = "active"
	StateDeactivating State = "deactivating"
)

// Enqueuer persists an outbound report for later delivery. *queue.Store
// satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload queue.Payload, priority int, channel queue.Channel, maxAttempts int) (int64, error)
}

// Reporter is armed for the duration of a panic session so location updates
// flow at the urgent cadence.
type Reporter interface {
	Arm(sessionID string)
	Disarm()
}

// Coordinator drives panic sessions: capture device context, persist the
// session, fan the alert across every channel, start audio capture, and keep
// the urgent flag raised until deactivation.
type Coordinator struct {
	cfg      *config.Config
	store    *Store
	enqueuer Enqueuer
	smsBlast queue.Adapter
	location device.LocationProvider
	battery  device.BatteryProvider
	recorder device.AudioRecorder
	reporter Reporter
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	sessionID string
	stopTimer *time.Timer

	urgent atomic.Bool
}

// Options bundles the coordinator's collaborators.
type Options struct {
	Config   *config.Config
	Store    *Store
	Enqueuer Enqueuer
	SMSBlast queue.Adapter
	Location device.LocationProvider
	Battery  device.BatteryProvider
	Recorder device.AudioRecorder
	Reporter Reporter
	Logger   *slog.Logger
}

// NewCoordinator builds an idle coordinator.
func NewCoordinator(opts Options) *Coordinator {
	return &Coordinator{
		cfg:      opts.Config,
		store:    opts.Store,
		enqueuer: opts.Enqueuer,
		smsBlast: opts.SMSBlast,
		location: opts.Location,
		battery:  opts.Battery,
		recorder: opts.Recorder,
		reporter: opts.Reporter,
		logger:   logging.NewComponentLogger(opts.Logger, "sos"),
		state:    StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveSessionID returns the session in progress, or empty when idle.
func (c *Coordinator) ActiveSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Urgent reports whether a panic session is in flight. Safe for concurrent
// use from the reporter loop.
func (c *Coordinator) Urgent() bool {
	return c.urgent.Load()
}

// Activate starts a panic session. A second call while one is already in
// flight is absorbed and returns nil without side effects. The only hard
// failure is session persistence; every transmission step past that point is
// best effort.
func (c *Coordinator) Activate(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		inFlight := c.sessionID
		c.mu.Unlock()
		c.logger.Warn("activation ignored, session already in flight",
			logging.String(logging.FieldSessionID, inFlight))
		return nil, nil
	}
	c.state = StateActivating
	c.mu.Unlock()

	captured := captureContext(ctx, c.location, c.battery, c.logger)
	now := time.Now().UTC()
	session := &Session{
		ID:        uuid.NewString(),
		SubjectID: c.cfg.Subject.ID,
		Latitude:  captured.latitude,
		Longitude: captured.longitude,
		Accuracy:  captured.accuracy,
		Battery:   captured.battery,
		CreatedAt: now,
	}

	if err := c.store.Insert(ctx, session); err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return nil, fmt.Errorf("persist panic session: %w", err)
	}

	c.mu.Lock()
	c.state = StateActive
	c.sessionID = session.ID
	c.mu.Unlock()
	c.urgent.Store(true)

	c.logger.Info("panic session activated",
		logging.String(logging.FieldSessionID, session.ID),
		logging.String(logging.FieldSubjectID, session.SubjectID),
		logging.Bool("has_location", captured.latitude != nil))

	payload := queue.SOSPayload{
		SubjectID: session.SubjectID,
		SessionID: session.ID,
		Latitude:  captured.latitude,
		Longitude: captured.longitude,
		Accuracy:  captured.accuracy,
		Battery:   captured.battery,
		RaisedAt:  now,
	}
	c.dispatchAlert(ctx, session, payload)
	c.startRecording(ctx, session.ID)

	if c.reporter != nil {
		c.reporter.Arm(session.ID)
	}
	return session, nil
}

// Deactivate resolves the active session. Calling it while idle is a no-op.
func (c *Coordinator) Deactivate(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateActive {
		state := c.state
		c.mu.Unlock()
		c.logger.Warn("deactivation ignored", logging.String("state", string(state)))
		return nil
	}
	c.state = StateDeactivating
	sessionID := c.sessionID
	timer := c.stopTimer
	c.stopTimer = nil
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	c.urgent.Store(false)
	if c.reporter != nil {
		c.reporter.Disarm()
	}
	c.stopRecording(ctx, sessionID)

	if err := c.store.Resolve(ctx, sessionID, time.Now().UTC()); err != nil {
		c.logger.Error("resolve session failed",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err))
	}

	if _, err := c.enqueuer.Enqueue(ctx, queue.StatusPayload{
		SubjectID: c.cfg.Subject.ID,
		Status:    "resolved",
	}, queue.PriorityEmergency, queue.ChannelNetwork, c.cfg.Queue.MaxAttempts); err != nil {
		c.logger.Error("enqueue resolution failed",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err))
	}

	c.mu.Lock()
	c.state = StateIdle
	c.sessionID = ""
	c.mu.Unlock()

	c.logger.Info("panic session resolved",
		logging.String(logging.FieldSessionID, sessionID))
	return nil
}

// dispatchAlert enqueues the SOS for network delivery and blasts SMS
// immediately. Neither path can abort the session.
func (c *Coordinator) dispatchAlert(ctx context.Context, session *Session, payload queue.SOSPayload) {
	if _, err := c.enqueuer.Enqueue(ctx, payload, queue.PriorityEmergency, queue.ChannelNetwork, c.cfg.Queue.MaxAttempts); err != nil {
		c.logger.Error("enqueue sos failed",
			logging.String(logging.FieldSessionID, session.ID),
			logging.Error(err))
	} else {
		c.recordChannel(ctx, session.ID, string(queue.ChannelNetwork))
	}

	if c.smsBlast == nil {
		return
	}
	item := &queue.Item{
		Kind:        queue.KindSOS,
		Payload:     payload,
		Priority:    queue.PriorityEmergency,
		Channel:     queue.ChannelSMS,
		MaxAttempts: 1,
		Status:      queue.StatusSending,
		CreatedAt:   session.CreatedAt,
	}
	if c.smsBlast.Attempt(ctx, item) {
		c.recordChannel(ctx, session.ID, string(queue.ChannelSMS))
	} else {
		c.logger.Warn("sms blast failed",
			logging.String(logging.FieldSessionID, session.ID),
			logging.String(logging.FieldChannel, string(queue.ChannelSMS)))
	}
}

func (c *Coordinator) recordChannel(ctx context.Context, sessionID, channel string) {
	if err := c.store.AppendChannel(ctx, sessionID, channel); err != nil {
		c.logger.Warn("record channel failed",
			logging.String(logging.FieldSessionID, sessionID),
			logging.String(logging.FieldChannel, channel),
			logging.Error(err))
	}
}

func (c *Coordinator) startRecording(ctx context.Context, sessionID string) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Start(ctx, c.cfg.Paths.AudioDir); err != nil {
		c.logger.Warn("audio start failed",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err))
		return
	}

	limit := time.Duration(c.cfg.Panic.AudioMaxSeconds) * time.Second
	timer := time.AfterFunc(limit, func() {
		c.mu.Lock()
		current := c.sessionID
		c.stopTimer = nil
		c.mu.Unlock()
		if current != sessionID {
			return
		}
		c.logger.Info("audio limit reached",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Duration("limit", limit))
		c.stopRecording(context.Background(), sessionID)
	})

	c.mu.Lock()
	c.stopTimer = timer
	c.mu.Unlock()
}

func (c *Coordinator) stopRecording(ctx context.Context, sessionID string) {
	if c.recorder == nil {
		return
	}
	ref, err := c.recorder.Stop()
	if err != nil {
		c.logger.Warn("audio stop failed",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err))
		return
	}
	if ref == "" {
		return
	}
	if err := c.store.SetAudioRef(ctx, sessionID, ref); err != nil {
		c.logger.Warn("persist audio ref failed",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err))
	}
}
