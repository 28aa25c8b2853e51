package coordserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"beacon/internal/escalate"
	"beacon/internal/fanout"
	"beacon/internal/logging"
	"beacon/internal/queue"
)

const maxBodySize = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// subjectGroups targets the global coordinator group plus the subject's
// country group when known.
func (s *Server) subjectGroups(r *http.Request, subjectID string) []string {
	groups := []string{fanout.GroupCoordinators}
	subject, err := s.store.GetSubject(r.Context(), subjectID)
	if err == nil && subject != nil && subject.Country != "" {
		groups = append(groups, fanout.CountryGroup(subject.Country))
	}
	return groups
}

func (s *Server) handleSOS(w http.ResponseWriter, r *http.Request) {
	var report queue.SOSPayload
	if !decodeBody(w, r, &report) {
		return
	}
	if report.SubjectID == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "subject_id is required")
		return
	}

	ctx := r.Context()
	subject := escalate.Subject{
		ID:        report.SubjectID,
		Status:    "panic",
		Battery:   report.Battery,
		Latitude:  report.Latitude,
		Longitude: report.Longitude,
	}
	if err := s.store.UpsertSubject(ctx, subject); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "record subject: %v", err)
		return
	}
	if err := s.store.AppendActivity(ctx, report.SubjectID, "sos", fmt.Sprintf("SOS raised (session %s)", report.SessionID)); err != nil {
		s.logger.Warn("activity append failed", logging.Error(err))
	}

	if _, _, err := s.engine.CreateEscalation(ctx, report.SubjectID, escalate.TypePanicActivated,
		escalate.SeverityCritical, "panic session activated from the field device"); err != nil {
		s.logger.Error("sos escalation failed",
			logging.String(logging.FieldSubjectID, report.SubjectID),
			logging.Error(err))
	}

	s.hub.Broadcast("sos_raised", report, s.subjectGroups(r, report.SubjectID)...)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "session_id": report.SessionID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var report queue.StatusPayload
	if !decodeBody(w, r, &report) {
		return
	}
	if report.SubjectID == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "subject_id is required")
		return
	}

	ctx := r.Context()
	subject := escalate.Subject{
		ID:        report.SubjectID,
		Status:    report.Status,
		Battery:   report.Battery,
		Latitude:  report.Latitude,
		Longitude: report.Longitude,
	}
	if err := s.store.UpsertSubject(ctx, subject); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "record subject: %v", err)
		return
	}

	switch report.Status {
	case "urgent", "panic", "medical":
		description := fmt.Sprintf("subject reported status %q", report.Status)
		if _, _, err := s.engine.CreateEscalation(ctx, report.SubjectID, escalate.TypeStatusAlert,
			escalate.SeverityCritical, description); err != nil {
			s.logger.Error("status escalation failed",
				logging.String(logging.FieldSubjectID, report.SubjectID),
				logging.Error(err))
		}
	}

	if report.Battery != nil && *report.Battery <= s.cfg.Coord.BatteryCriticalPercent {
		description := fmt.Sprintf("battery at %d%%", *report.Battery)
		if _, _, err := s.engine.CreateEscalation(ctx, report.SubjectID, escalate.TypeBatteryCritical,
			escalate.SeverityWarning, description); err != nil {
			s.logger.Error("battery escalation failed",
				logging.String(logging.FieldSubjectID, report.SubjectID),
				logging.Error(err))
		}
	}

	s.hub.Broadcast("subject_status", report, s.subjectGroups(r, report.SubjectID)...)
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	var report queue.CheckinPayload
	if !decodeBody(w, r, &report) {
		return
	}
	if report.SubjectID == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "subject_id is required")
		return
	}

	ctx := r.Context()
	subject := escalate.Subject{
		ID:        report.SubjectID,
		Status:    "ok",
		Latitude:  report.Latitude,
		Longitude: report.Longitude,
	}
	if err := s.store.UpsertSubject(ctx, subject); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "record subject: %v", err)
		return
	}
	if err := s.store.RecordCheckin(ctx, report.SubjectID, time.Now().UTC()); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "record checkin: %v", err)
		return
	}
	if report.Note != "" {
		if err := s.store.AppendActivity(ctx, report.SubjectID, "checkin", report.Note); err != nil {
			s.logger.Warn("activity append failed", logging.Error(err))
		}
	}

	s.hub.Broadcast("subject_checkin", report, s.subjectGroups(r, report.SubjectID)...)
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var report queue.MessagePayload
	if !decodeBody(w, r, &report) {
		return
	}
	if report.SubjectID == "" || report.Body == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "subject_id and body are required")
		return
	}

	if err := s.store.AppendActivity(r.Context(), report.SubjectID, "message", report.Body); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "record message: %v", err)
		return
	}

	s.hub.Broadcast("subject_message", report, s.subjectGroups(r, report.SubjectID)...)
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mode, ok := escalate.ParseMode(req.Mode)
	if !ok {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "mode must be normal or crisis")
		return
	}

	s.engine.SetMode(r.Context(), mode)
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(mode)})
}

type broadcastRequest struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Groups  []string        `json:"groups"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Event == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "event is required")
		return
	}
	groups := req.Groups
	if len(groups) == 0 {
		groups = []string{fanout.GroupCoordinators}
	}

	s.hub.BroadcastRaw(req.Event, req.Payload, groups...)
	writeJSON(w, http.StatusOK, map[string]string{"status": "relayed"})
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.store.ListSubjects(r.Context(), r.URL.Query().Get("country"))
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "list subjects: %v", err)
		return
	}
	if subjects == nil {
		subjects = []*escalate.Subject{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	escalation, err := s.engine.Acknowledge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, escalation)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	escalation, err := s.engine.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, escalation)
}
