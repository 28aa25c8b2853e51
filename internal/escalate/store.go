package escalate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"beacon/internal/config"
)

// ErrDuplicateUnresolved reports an insert that collided with the open
// escalation for the same subject and type; the partial unique index makes
// the one-unresolved-per-pair invariant structural.
var ErrDuplicateUnresolved = errors.New("unresolved escalation already exists")

// Store manages coordination state backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore initializes or connects to the coordination database.
func OpenStore(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenStorePath(cfg.CoordDBPath())
}

// OpenStorePath opens the coordination database at an explicit path.
func OpenStorePath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertSubject creates or refreshes a subject row from an inbound report.
// Zero-valued optional fields leave the stored values untouched.
func (s *Store) UpsertSubject(ctx context.Context, subject Subject) error {
	if subject.ID == "" {
		return errors.New("subject id is empty")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO subjects (id, name, country, status, battery, latitude, longitude, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = CASE WHEN excluded.name != '' THEN excluded.name ELSE subjects.name END,
            country = CASE WHEN excluded.country != '' THEN excluded.country ELSE subjects.country END,
            status = CASE WHEN excluded.status != 'unknown' THEN excluded.status ELSE subjects.status END,
            battery = COALESCE(excluded.battery, subjects.battery),
            latitude = COALESCE(excluded.latitude, subjects.latitude),
            longitude = COALESCE(excluded.longitude, subjects.longitude),
            updated_at = excluded.updated_at`,
		subject.ID,
		subject.Name,
		NormalizeCountry(subject.Country),
		defaultStatus(subject.Status),
		nullableInt(subject.Battery),
		nullableFloat(subject.Latitude),
		nullableFloat(subject.Longitude),
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert subject: %w", err)
	}
	return nil
}

// RecordCheckin stamps the subject's last check-in time.
func (s *Store) RecordCheckin(ctx context.Context, subjectID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE subjects SET last_checkin_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		subjectID,
	)
	if err != nil {
		return fmt.Errorf("record checkin: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record checkin rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("subject %s not found", subjectID)
	}
	return nil
}

// GetSubject fetches a subject, nil when absent.
func (s *Store) GetSubject(ctx context.Context, id string) (*Subject, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE id = ?`, id)
	subject, err := scanSubject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return subject, nil
}

// ListSubjects returns subjects optionally scoped to one country.
func (s *Store) ListSubjects(ctx context.Context, country string) ([]*Subject, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if country = NormalizeCountry(country); country == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+subjectColumns+` FROM subjects ORDER BY id ASC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE country = ? ORDER BY id ASC`, country)
	}
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []*Subject
	for rows.Next() {
		subject, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}

// StatusCounts buckets subjects by their current status.
func (s *Store) StatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM subjects GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// InsertEscalation persists a new unresolved escalation.
func (s *Store) InsertEscalation(ctx context.Context, escalation Escalation) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO escalations (id, subject_id, type, severity, description, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		escalation.ID,
		escalation.SubjectID,
		escalation.Type,
		string(escalation.Severity),
		escalation.Description,
		escalation.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateUnresolved
		}
		return fmt.Errorf("insert escalation: %w", err)
	}
	return nil
}

// UnresolvedEscalation finds the open escalation for a subject and type,
// nil when there is none.
func (s *Store) UnresolvedEscalation(ctx context.Context, subjectID, escalationType string) (*Escalation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+escalationColumns+` FROM escalations
         WHERE subject_id = ? AND type = ? AND resolved_at IS NULL
         ORDER BY created_at DESC LIMIT 1`,
		subjectID, escalationType,
	)
	escalation, err := scanEscalation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find unresolved escalation: %w", err)
	}
	return escalation, nil
}

// ListUnresolved returns open escalations newest first, capped at limit.
func (s *Store) ListUnresolved(ctx context.Context, limit int) ([]*Escalation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+escalationColumns+` FROM escalations
         WHERE resolved_at IS NULL ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list unresolved: %w", err)
	}
	defer rows.Close()

	var escalations []*Escalation
	for rows.Next() {
		escalation, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		escalations = append(escalations, escalation)
	}
	return escalations, rows.Err()
}

// GetEscalation fetches one escalation, nil when absent.
func (s *Store) GetEscalation(ctx context.Context, id string) (*Escalation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+escalationColumns+` FROM escalations WHERE id = ?`, id)
	escalation, err := scanEscalation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get escalation: %w", err)
	}
	return escalation, nil
}

// AcknowledgeEscalation stamps acknowledged_at, reporting whether a row
// changed.
func (s *Store) AcknowledgeEscalation(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE escalations SET acknowledged_at = ? WHERE id = ? AND acknowledged_at IS NULL`,
		at.UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return false, fmt.Errorf("acknowledge escalation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ResolveEscalation stamps resolved_at, reporting whether a row changed.
func (s *Store) ResolveEscalation(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE escalations SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL`,
		at.UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return false, fmt.Errorf("resolve escalation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// AppendActivity records one feed entry.
func (s *Store) AppendActivity(ctx context.Context, subjectID, kind, body string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity (subject_id, kind, body, created_at) VALUES (?, ?, ?, ?)`,
		subjectID, kind, body, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// RecentActivity returns the newest feed entries, capped at limit.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]*ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject_id, kind, body, created_at FROM activity ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()

	var entries []*ActivityEntry
	for rows.Next() {
		var (
			entry      ActivityEntry
			createdRaw string
		)
		if err := rows.Scan(&entry.ID, &entry.SubjectID, &entry.Kind, &entry.Body, &createdRaw); err != nil {
			return nil, err
		}
		if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
			entry.CreatedAt = created
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

const subjectColumns = "id, name, country, status, battery, latitude, longitude, last_checkin_at, updated_at"

func scanSubject(scanner interface{ Scan(dest ...any) error }) (*Subject, error) {
	var (
		subject    Subject
		battery    sql.NullInt64
		latitude   sql.NullFloat64
		longitude  sql.NullFloat64
		checkinRaw sql.NullString
		updatedRaw string
	)
	if err := scanner.Scan(
		&subject.ID,
		&subject.Name,
		&subject.Country,
		&subject.Status,
		&battery,
		&latitude,
		&longitude,
		&checkinRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	if battery.Valid {
		level := int(battery.Int64)
		subject.Battery = &level
	}
	if latitude.Valid {
		subject.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		subject.Longitude = &longitude.Float64
	}
	if checkinRaw.Valid {
		if at, err := time.Parse(time.RFC3339Nano, checkinRaw.String); err == nil {
			subject.LastCheckinAt = &at
		}
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		subject.UpdatedAt = updated
	}
	return &subject, nil
}

const escalationColumns = "id, subject_id, type, severity, description, created_at, acknowledged_at, resolved_at"

func scanEscalation(scanner interface{ Scan(dest ...any) error }) (*Escalation, error) {
	var (
		escalation  Escalation
		severity    string
		createdRaw  string
		ackRaw      sql.NullString
		resolvedRaw sql.NullString
	)
	if err := scanner.Scan(
		&escalation.ID,
		&escalation.SubjectID,
		&escalation.Type,
		&severity,
		&escalation.Description,
		&createdRaw,
		&ackRaw,
		&resolvedRaw,
	); err != nil {
		return nil, err
	}
	escalation.Severity = Severity(severity)
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		escalation.CreatedAt = created
	}
	if ackRaw.Valid {
		if at, err := time.Parse(time.RFC3339Nano, ackRaw.String); err == nil {
			escalation.AcknowledgedAt = &at
		}
	}
	if resolvedRaw.Valid {
		if at, err := time.Parse(time.RFC3339Nano, resolvedRaw.String); err == nil {
			escalation.ResolvedAt = &at
		}
	}
	return &escalation, nil
}

func defaultStatus(status string) string {
	if status == "" {
		return "unknown"
	}
	return status
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}
