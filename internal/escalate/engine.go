package escalate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"beacon/internal/config"
	"beacon/internal/fanout"
	"beacon/internal/logging"
	"beacon/internal/notify"
)

// Broadcaster pushes events to connected operator sessions. *fanout.Hub
// satisfies it.
type Broadcaster interface {
	Broadcast(event string, payload any, groups ...string)
}

// Engine owns escalation creation, the operation mode, and the periodic
// missed-checkin scan.
type Engine struct {
	cfg      *config.Config
	store    *Store
	hub      Broadcaster
	notifier notify.Service
	logger   *slog.Logger

	modeMu sync.RWMutex
	mode   Mode

	checking atomic.Bool
	now      func() time.Time
}

// NewEngine builds an engine in normal mode.
func NewEngine(cfg *config.Config, store *Store, hub Broadcaster, notifier notify.Service, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    store,
		hub:      hub,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "escalate"),
		mode:     ModeNormal,
		now:      time.Now,
	}
}

// Mode returns the current operation mode.
func (e *Engine) Mode() Mode {
	e.modeMu.RLock()
	defer e.modeMu.RUnlock()
	return e.mode
}

// SetMode switches the operation mode, broadcasting the change to all
// coordinators. Setting the current mode again is a no-op.
func (e *Engine) SetMode(ctx context.Context, mode Mode) {
	e.modeMu.Lock()
	if e.mode == mode {
		e.modeMu.Unlock()
		return
	}
	e.mode = mode
	e.modeMu.Unlock()

	e.logger.Info("operation mode changed", logging.String("mode", string(mode)))
	e.hub.Broadcast("mode_changed", map[string]string{"mode": string(mode)}, fanout.GroupCoordinators)
	if err := e.notifier.NotifyModeChange(ctx, string(mode)); err != nil {
		e.logger.Warn("mode notification failed", logging.Error(err))
	}
}

// Threshold returns the missed-checkin window for the current mode.
func (e *Engine) Threshold() time.Duration {
	normal := time.Duration(e.cfg.Escalation.NormalThresholdMinutes) * time.Minute
	crisis := time.Duration(e.cfg.Escalation.CrisisThresholdMinutes) * time.Minute
	if crisis > normal {
		crisis = normal
	}
	if e.Mode() == ModeCrisis {
		return crisis
	}
	return normal
}

// CreateEscalation raises an escalation unless an unresolved one of the same
// type already exists for the subject. It reports whether a new escalation
// was created. Broadcast and notification failures never roll the record
// back.
func (e *Engine) CreateEscalation(ctx context.Context, subjectID, escalationType string, severity Severity, description string) (*Escalation, bool, error) {
	existing, err := e.store.UnresolvedEscalation(ctx, subjectID, escalationType)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	escalation := Escalation{
		ID:          uuid.NewString(),
		SubjectID:   subjectID,
		Type:        escalationType,
		Severity:    severity,
		Description: description,
		CreatedAt:   e.now().UTC(),
	}
	if err := e.store.InsertEscalation(ctx, escalation); err != nil {
		if errors.Is(err, ErrDuplicateUnresolved) {
			// A concurrent creator won the insert; hand back its record.
			existing, lookupErr := e.store.UnresolvedEscalation(ctx, subjectID, escalationType)
			if lookupErr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	e.logger.Info("escalation created",
		logging.String(logging.FieldSubjectID, subjectID),
		logging.String(logging.FieldEventType, escalationType),
		logging.String("severity", string(severity)))

	e.broadcastEscalation(ctx, "escalation_created", &escalation)

	if severity == SeverityCritical {
		name := subjectID
		if subject, err := e.store.GetSubject(ctx, subjectID); err == nil && subject != nil && subject.Name != "" {
			name = subject.Name
		}
		if err := e.notifier.NotifyEscalation(ctx, name, escalationType, string(severity), description); err != nil {
			e.logger.Warn("escalation notification failed",
				logging.String(logging.FieldSubjectID, subjectID),
				logging.Error(err))
		}
	}
	return &escalation, true, nil
}

// CheckMissedCheckins scans every subject for a check-in older than the
// active threshold and raises a warning escalation per offender. It returns
// how many escalations were created.
func (e *Engine) CheckMissedCheckins(ctx context.Context) (int, error) {
	threshold := e.Threshold()
	cutoff := e.now().UTC().Add(-threshold)

	subjects, err := e.store.ListSubjects(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list subjects: %w", err)
	}

	created := 0
	for _, subject := range subjects {
		if subject.LastCheckinAt != nil && subject.LastCheckinAt.After(cutoff) {
			continue
		}

		var description string
		if subject.LastCheckinAt == nil {
			description = fmt.Sprintf("%s has never checked in (window %s)", subjectName(subject), threshold)
		} else {
			overdue := e.now().UTC().Sub(*subject.LastCheckinAt).Round(time.Minute)
			description = fmt.Sprintf("%s last checked in %s ago (window %s)", subjectName(subject), overdue, threshold)
		}

		_, isNew, err := e.CreateEscalation(ctx, subject.ID, TypeMissedCheckin, SeverityWarning, description)
		if err != nil {
			e.logger.Error("missed-checkin escalation failed",
				logging.String(logging.FieldSubjectID, subject.ID),
				logging.Error(err))
			continue
		}
		if isNew {
			created++
		}
	}
	return created, nil
}

// StartPeriodicChecks runs CheckMissedCheckins on the given interval until
// the returned stop function is called. Overlapping cycles are skipped and a
// panicking cycle never kills the loop.
func (e *Engine) StartPeriodicChecks(interval time.Duration) func() {
	if interval <= 0 {
		interval = time.Duration(e.cfg.Escalation.ScanIntervalSeconds) * time.Second
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.runCheckCycle()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stop) })
		<-done
	}
}

func (e *Engine) runCheckCycle() {
	if !e.checking.CompareAndSwap(false, true) {
		e.logger.Warn("missed-checkin scan still running, cycle skipped")
		return
	}
	defer e.checking.Store(false)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("missed-checkin scan panicked", logging.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	created, err := e.CheckMissedCheckins(ctx)
	if err != nil {
		e.logger.Error("missed-checkin scan failed", logging.Error(err))
		return
	}
	if created > 0 {
		e.logger.Info("missed-checkin scan complete", logging.Int("created", created))
	}
}

// Acknowledge stamps an escalation acknowledged and broadcasts the update.
func (e *Engine) Acknowledge(ctx context.Context, id string) (*Escalation, error) {
	changed, err := e.store.AcknowledgeEscalation(ctx, id, e.now().UTC())
	if err != nil {
		return nil, err
	}
	escalation, err := e.store.GetEscalation(ctx, id)
	if err != nil {
		return nil, err
	}
	if escalation == nil {
		return nil, fmt.Errorf("escalation %s not found", id)
	}
	if changed {
		e.broadcastEscalation(ctx, "escalation_acknowledged", escalation)
	}
	return escalation, nil
}

// Resolve stamps an escalation resolved and broadcasts the update.
func (e *Engine) Resolve(ctx context.Context, id string) (*Escalation, error) {
	changed, err := e.store.ResolveEscalation(ctx, id, e.now().UTC())
	if err != nil {
		return nil, err
	}
	escalation, err := e.store.GetEscalation(ctx, id)
	if err != nil {
		return nil, err
	}
	if escalation == nil {
		return nil, fmt.Errorf("escalation %s not found", id)
	}
	if changed {
		e.broadcastEscalation(ctx, "escalation_resolved", escalation)
	}
	return escalation, nil
}

func (e *Engine) broadcastEscalation(ctx context.Context, event string, escalation *Escalation) {
	groups := []string{fanout.GroupCoordinators}
	if subject, err := e.store.GetSubject(ctx, escalation.SubjectID); err == nil && subject != nil && subject.Country != "" {
		groups = append(groups, fanout.CountryGroup(subject.Country))
	}
	e.hub.Broadcast(event, escalation, groups...)
}

func subjectName(subject *Subject) string {
	if subject.Name != "" {
		return subject.Name
	}
	return subject.ID
}
