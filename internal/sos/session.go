package sos

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"beacon/internal/queue"
)

// Session is one emergency interval between activation and resolution.
// Location and battery stay nil when capture could not deliver; ChannelsUsed
// records only the channels that actually succeeded.
type Session struct {
	ID           string
	SubjectID    string
	Latitude     *float64
	Longitude    *float64
	Accuracy     *float64
	Battery      *int
	AudioRef     string
	ChannelsUsed []string
	Resolved     bool
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}

// Store persists panic sessions in the agent outbox database.
type Store struct {
	db *sql.DB
}

// NewStore builds a session store sharing the outbox database.
func NewStore(q *queue.Store) *Store {
	return &Store{db: q.DB()}
}

// Insert persists a new unresolved session.
func (s *Store) Insert(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("session is nil")
	}
	channels, err := json.Marshal(session.ChannelsUsed)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}
	if session.ChannelsUsed == nil {
		channels = []byte("[]")
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO panic_sessions (id, subject_id, latitude, longitude, accuracy, battery, audio_ref, channels_used, resolved, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		session.ID,
		session.SubjectID,
		nullableFloat(session.Latitude),
		nullableFloat(session.Longitude),
		nullableFloat(session.Accuracy),
		nullableInt(session.Battery),
		nullableString(session.AudioRef),
		string(channels),
		session.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// AppendChannel records a channel that succeeded for the session.
func (s *Store) AppendChannel(ctx context.Context, id, channel string) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("session %s not found", id)
	}
	for _, used := range session.ChannelsUsed {
		if used == channel {
			return nil
		}
	}
	updated := append(session.ChannelsUsed, channel)
	raw, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE panic_sessions SET channels_used = ? WHERE id = ?`, string(raw), id); err != nil {
		return fmt.Errorf("update channels: %w", err)
	}
	return nil
}

// SetAudioRef persists the captured audio reference onto the session.
func (s *Store) SetAudioRef(ctx context.Context, id, ref string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE panic_sessions SET audio_ref = ? WHERE id = ?`, nullableString(ref), id); err != nil {
		return fmt.Errorf("update audio ref: %w", err)
	}
	return nil
}

// Resolve marks the session resolved at the given time.
func (s *Store) Resolve(ctx context.Context, id string, at time.Time) error {
	if _, err := s.db.ExecContext(
		ctx,
		`UPDATE panic_sessions SET resolved = 1, resolved_at = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}
	return nil
}

// Get fetches a session by identifier.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM panic_sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// List returns sessions most recent first, optionally filtered by subject.
func (s *Store) List(ctx context.Context, subjectID string) ([]*Session, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if subjectID == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM panic_sessions ORDER BY created_at DESC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM panic_sessions WHERE subject_id = ? ORDER BY created_at DESC`, subjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

const sessionColumns = "id, subject_id, latitude, longitude, accuracy, battery, audio_ref, channels_used, resolved, created_at, resolved_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id          string
		subjectID   string
		latitude    sql.NullFloat64
		longitude   sql.NullFloat64
		accuracy    sql.NullFloat64
		battery     sql.NullInt64
		audioRef    sql.NullString
		channelsRaw string
		resolved    int
		createdRaw  string
		resolvedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&subjectID,
		&latitude,
		&longitude,
		&accuracy,
		&battery,
		&audioRef,
		&channelsRaw,
		&resolved,
		&createdRaw,
		&resolvedRaw,
	); err != nil {
		return nil, err
	}

	session := &Session{
		ID:        id,
		SubjectID: subjectID,
		AudioRef:  audioRef.String,
		Resolved:  resolved != 0,
	}
	if latitude.Valid {
		session.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		session.Longitude = &longitude.Float64
	}
	if accuracy.Valid {
		session.Accuracy = &accuracy.Float64
	}
	if battery.Valid {
		level := int(battery.Int64)
		session.Battery = &level
	}
	if err := json.Unmarshal([]byte(channelsRaw), &session.ChannelsUsed); err != nil {
		return nil, fmt.Errorf("decode channels: %w", err)
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		session.CreatedAt = created
	}
	if resolvedRaw.Valid {
		if at, err := time.Parse(time.RFC3339Nano, resolvedRaw.String); err == nil {
			session.ResolvedAt = &at
		}
	}
	return session, nil
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
