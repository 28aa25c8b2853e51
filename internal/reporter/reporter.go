// Package reporter streams location fixes to the coordination server while a
// panic session is in flight. Reports are live telemetry: a fix that cannot
// be delivered right now is worthless later, so failures are logged and
// dropped rather than queued.
package reporter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"beacon/internal/device"
	"beacon/internal/logging"
	"beacon/internal/queue"
)

const submitTimeout = 10 * time.Second

// StatusSubmitter posts a status report to the coordination server.
// *channel.Client satisfies it.
type StatusSubmitter interface {
	SubmitStatus(ctx context.Context, payload queue.StatusPayload) error
}

// Reporter forwards device location updates as urgent status reports while
// armed. Arm and Disarm are idempotent.
type Reporter struct {
	subjectID string
	source    device.LocationSource
	submitter StatusSubmitter
	logger    *slog.Logger

	mu        sync.Mutex
	armed     bool
	sessionID string

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New builds a reporter over the given location source. Call Run to start
// consuming updates.
func New(subjectID string, source device.LocationSource, submitter StatusSubmitter, logger *slog.Logger) *Reporter {
	return &Reporter{
		subjectID: subjectID,
		source:    source,
		submitter: submitter,
		logger:    logging.NewComponentLogger(logger, "reporter"),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Arm switches the reporter into urgent mode for the given session.
func (r *Reporter) Arm(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.armed && r.sessionID == sessionID {
		return
	}
	r.armed = true
	r.sessionID = sessionID
	r.logger.Info("urgent reporting armed",
		logging.String(logging.FieldSessionID, sessionID))
}

// Disarm stops urgent reporting. Safe to call when already disarmed.
func (r *Reporter) Disarm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed {
		return
	}
	r.armed = false
	r.sessionID = ""
	r.logger.Info("urgent reporting disarmed")
}

// Armed reports whether urgent mode is on.
func (r *Reporter) Armed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed
}

// Run consumes location updates until Stop is called or the source channel
// closes. Updates arriving while disarmed are discarded.
func (r *Reporter) Run() {
	defer close(r.done)
	updates := r.source.Updates()
	for {
		select {
		case <-r.stop:
			return
		case fix, ok := <-updates:
			if !ok {
				return
			}
			r.handle(fix)
		}
	}
}

// Stop ends the Run loop and waits for it to drain.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Reporter) handle(fix device.Location) {
	r.mu.Lock()
	armed := r.armed
	sessionID := r.sessionID
	r.mu.Unlock()
	if !armed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	payload := queue.StatusPayload{
		SubjectID: r.subjectID,
		Status:    "urgent",
		Latitude:  &fix.Latitude,
		Longitude: &fix.Longitude,
	}
	if err := r.submitter.SubmitStatus(ctx, payload); err != nil {
		r.logger.Warn("urgent report dropped",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err))
	}
}
