package escalate

import (
	"strings"
	"time"
)

// NormalizeCountry folds a country code to its canonical upper-case form.
// Applied on every write and filter so "de" and "DE" address the same group.
func NormalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Mode is the coordination centre's operating posture. Crisis mode tightens
// the missed-checkin threshold.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeCrisis Mode = "crisis"
)

// ParseMode validates an operator-supplied mode string.
func ParseMode(value string) (Mode, bool) {
	switch Mode(value) {
	case ModeNormal:
		return ModeNormal, true
	case ModeCrisis:
		return ModeCrisis, true
	default:
		return "", false
	}
}

// Severity grades an escalation.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Escalation types raised by ingestion and the periodic scanner.
const (
	TypeMissedCheckin   = "missed_checkin"
	TypePanicActivated  = "panic_activated"
	TypeStatusAlert     = "status_alert"
	TypeBatteryCritical = "battery_critical"
)

// Subject is the server-side view of one field subject.
type Subject struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Country       string     `json:"country"`
	Status        string     `json:"status"`
	Battery       *int       `json:"battery,omitempty"`
	Latitude      *float64   `json:"latitude,omitempty"`
	Longitude     *float64   `json:"longitude,omitempty"`
	LastCheckinAt *time.Time `json:"last_checkin_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Escalation is an operator-facing incident requiring attention.
type Escalation struct {
	ID             string     `json:"id"`
	SubjectID      string     `json:"subject_id"`
	Type           string     `json:"type"`
	Severity       Severity   `json:"severity"`
	Description    string     `json:"description"`
	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// ActivityEntry is one line in the recent-activity feed.
type ActivityEntry struct {
	ID        int64     `json:"id"`
	SubjectID string    `json:"subject_id"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
