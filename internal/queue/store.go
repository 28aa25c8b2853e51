package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"beacon/internal/config"
)

// Store manages outbound queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the agent outbox database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.QueueDBPath())
}

// OpenPath opens the outbox database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
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
	if err := store.recoverStaleSending(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// recoverStaleSending sweeps items stranded in sending by an interrupted
// flush. Items with attempts left return to pending; exhausted ones park as
// failed so RetryFailed remains the only way back.
func (s *Store) recoverStaleSending(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE queue_items SET status = ? WHERE status = ? AND attempts >= max_attempts`,
		StatusFailed, StatusSending,
	); err != nil {
		return fmt.Errorf("fail exhausted sending items: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE queue_items SET status = ? WHERE status = ?`,
		StatusPending, StatusSending,
	); err != nil {
		return fmt.Errorf("recover stale sending items: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the underlying handle so sibling stores can share the database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Enqueue persists a new pending item. It never attempts transmission; the
// flush loop owns all dispatching.
func (s *Store) Enqueue(ctx context.Context, payload Payload, priority int, channel Channel, maxAttempts int) (int64, error) {
	if _, ok := channelSet[channel]; !ok {
		return 0, fmt.Errorf("unknown channel %q", channel)
	}
	if maxAttempts <= 0 {
		return 0, fmt.Errorf("max attempts must be positive, got %d", maxAttempts)
	}
	raw, err := marshalPayload(payload)
	if err != nil {
		return 0, err
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO queue_items (kind, payload, priority, channel, attempts, max_attempts, status, created_at)
         VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
		payload.Kind(),
		raw,
		priority,
		channel,
		maxAttempts,
		StatusPending,
		timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("insert queue item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// GetByID fetches a queue item by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Eligible returns pending items with attempts remaining, ordered by priority
// descending then creation time ascending (stable FIFO within a tier).
func (s *Store) Eligible(ctx context.Context) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items
         WHERE status = ? AND attempts < max_attempts
         ORDER BY priority DESC, created_at ASC, id ASC`,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("query eligible items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// List returns queue items filtered by status set (or all items when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM queue_items`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// BeginAttempt marks an item as sending and burns one attempt.
func (s *Store) BeginAttempt(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE queue_items SET status = ?, attempts = attempts + 1, last_attempt_at = ?
         WHERE id = ? AND status = ? AND attempts < max_attempts`,
		StatusSending,
		now,
		id,
		StatusPending,
	)
	if err != nil {
		return fmt.Errorf("begin attempt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %d is not eligible for dispatch", id)
	}
	return nil
}

// FinishAttempt records the outcome of a dispatch attempt. Success is
// terminal; failure returns the item to pending until attempts run out, then
// parks it as failed.
func (s *Store) FinishAttempt(ctx context.Context, id int64, success bool) error {
	var err error
	if success {
		_, err = s.db.ExecContext(
			ctx,
			`UPDATE queue_items SET status = ? WHERE id = ? AND status = ?`,
			StatusSent, id, StatusSending,
		)
	} else {
		_, err = s.db.ExecContext(
			ctx,
			`UPDATE queue_items
             SET status = CASE WHEN attempts >= max_attempts THEN ? ELSE ? END
             WHERE id = ? AND status = ?`,
			StatusFailed, StatusPending, id, StatusSending,
		)
	}
	if err != nil {
		return fmt.Errorf("finish attempt: %w", err)
	}
	return nil
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// PurgeSent deletes all sent items (retention cleanup).
func (s *Store) PurgeSent(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusSent)
	if err != nil {
		return 0, fmt.Errorf("purge sent: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed resets all failed items to pending with a fresh attempt budget.
// This is the only path out of the failed status.
func (s *Store) RetryFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE queue_items SET status = ?, attempts = 0 WHERE status = ?`,
		StatusPending,
		StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return res.RowsAffected()
}

const itemColumns = "id, kind, payload, priority, channel, attempts, max_attempts, status, created_at, last_attempt_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id            int64
		kindStr       string
		payloadRaw    string
		priority      int
		channelStr    string
		attempts      int
		maxAttempts   int
		statusStr     string
		createdRaw    string
		lastAttemptRw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&kindStr,
		&payloadRaw,
		&priority,
		&channelStr,
		&attempts,
		&maxAttempts,
		&statusStr,
		&createdRaw,
		&lastAttemptRw,
	); err != nil {
		return nil, err
	}

	payload, err := unmarshalPayload(Kind(kindStr), payloadRaw)
	if err != nil {
		return nil, err
	}

	item := &Item{
		ID:          id,
		Kind:        Kind(kindStr),
		Payload:     payload,
		Priority:    priority,
		Channel:     Channel(channelStr),
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		Status:      Status(statusStr),
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if lastAttemptRw.Valid {
		if last, err := parseTimeString(lastAttemptRw.String); err == nil {
			item.LastAttemptAt = &last
		}
	}
	return item, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
