package coordserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"beacon/internal/escalate"
	"beacon/internal/fanout"
	"beacon/internal/logging"
)

const keepaliveInterval = 25 * time.Second

// snapshot is the first event on every new stream: enough state to render an
// operator console without further queries.
type snapshot struct {
	Mode         string                    `json:"mode"`
	Subjects     []*escalate.Subject       `json:"subjects"`
	Escalations  []*escalate.Escalation    `json:"escalations"`
	StatusCounts map[string]int            `json:"status_counts"`
	Activity     []*escalate.ActivityEntry `json:"activity"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	groups := []string{fanout.GroupCoordinators}
	country := r.URL.Query().Get("country")
	if country != "" {
		groups = append(groups, fanout.CountryGroup(country))
	}

	// Subscribe before building the snapshot so nothing published in
	// between is lost; buffered deltas drain after the snapshot.
	sub := s.hub.Subscribe(groups...)
	defer s.hub.Unsubscribe(sub)

	snap, err := s.buildSnapshot(r, country)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "build snapshot: %v", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if err := writeSSE(w, "snapshot", snap); err != nil {
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-sub.Events():
			if !open {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, event.Data); err != nil {
				s.logger.Debug("event stream write failed", logging.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) buildSnapshot(r *http.Request, country string) (*snapshot, error) {
	ctx := r.Context()

	subjects, err := s.store.ListSubjects(ctx, country)
	if err != nil {
		return nil, err
	}
	escalations, err := s.store.ListUnresolved(ctx, s.cfg.Coord.SnapshotEscalations)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	activity, err := s.store.RecentActivity(ctx, s.cfg.Coord.SnapshotActivity)
	if err != nil {
		return nil, err
	}

	if subjects == nil {
		subjects = []*escalate.Subject{}
	}
	if escalations == nil {
		escalations = []*escalate.Escalation{}
	}
	if activity == nil {
		activity = []*escalate.ActivityEntry{}
	}
	return &snapshot{
		Mode:         string(s.engine.Mode()),
		Subjects:     subjects,
		Escalations:  escalations,
		StatusCounts: counts,
		Activity:     activity,
	}, nil
}

func writeSSE(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
