package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind identifies the report type an item carries.
type Kind string

const (
	KindSOS     Kind = "sos"
	KindCheckin Kind = "checkin"
	KindStatus  Kind = "status"
	KindMessage Kind = "message"
)

var kindSet = map[Kind]struct{}{
	KindSOS:     {},
	KindCheckin: {},
	KindStatus:  {},
	KindMessage: {},
}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := kindSet[normalized]
	return normalized, ok
}

// Payload is the kind-specific body of a queue item. Implementations are
// decoded once at enqueue time; flush never re-parses free-form data.
type Payload interface {
	Kind() Kind
	// SubjectRef returns the field subject the report belongs to.
	SubjectRef() string
}

// SOSPayload carries an emergency alert with whatever context capture produced.
// Location and battery stay nil when the sensors could not deliver in time.
type SOSPayload struct {
	SubjectID string    `json:"subject_id"`
	SessionID string    `json:"session_id"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Battery   *int      `json:"battery,omitempty"`
	RaisedAt  time.Time `json:"raised_at"`
}

func (p SOSPayload) Kind() Kind         { return KindSOS }
func (p SOSPayload) SubjectRef() string { return p.SubjectID }

// CheckinPayload carries a routine safety check-in.
type CheckinPayload struct {
	SubjectID string   `json:"subject_id"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Note      string   `json:"note,omitempty"`
}

func (p CheckinPayload) Kind() Kind         { return KindCheckin }
func (p CheckinPayload) SubjectRef() string { return p.SubjectID }

// StatusPayload carries a subject status transition (ok, urgent, medical, ...).
type StatusPayload struct {
	SubjectID string   `json:"subject_id"`
	Status    string   `json:"status"`
	Battery   *int     `json:"battery,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func (p StatusPayload) Kind() Kind         { return KindStatus }
func (p StatusPayload) SubjectRef() string { return p.SubjectID }

// MessagePayload carries a short free-text message to the coordination centre.
type MessagePayload struct {
	SubjectID string `json:"subject_id"`
	Body      string `json:"body"`
}

func (p MessagePayload) Kind() Kind         { return KindMessage }
func (p MessagePayload) SubjectRef() string { return p.SubjectID }

func marshalPayload(p Payload) (string, error) {
	if p == nil {
		return "", fmt.Errorf("payload is nil")
	}
	if p.SubjectRef() == "" {
		return "", fmt.Errorf("payload missing subject id")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", p.Kind(), err)
	}
	return string(raw), nil
}

func unmarshalPayload(kind Kind, raw string) (Payload, error) {
	switch kind {
	case KindSOS:
		var p SOSPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode sos payload: %w", err)
		}
		return p, nil
	case KindCheckin:
		var p CheckinPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode checkin payload: %w", err)
		}
		return p, nil
	case KindStatus:
		var p StatusPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode status payload: %w", err)
		}
		return p, nil
	case KindMessage:
		var p MessagePayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode message payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown payload kind %q", kind)
	}
}
