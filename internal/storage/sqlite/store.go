// Package sqlite stores sessions in a single SQLite file. The event log is
// kept in its own table and appended incrementally on every save.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/storage"
	"github.com/tatianab/lesson-game/internal/storage/sqlite/migrations"
)

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// Store implements storage.Store over SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open opens a session store at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save upserts the session row and appends events not stored yet. A log
// shorter than the stored one replaces it.
func (s *Store) Save(ctx context.Context, rec storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if rec.Spec == nil {
		return fmt.Errorf("session %s: specification is required", rec.ID)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now()
	}

	events := rec.State.Events
	st := rec.State
	st.Events = nil
	specJSON, err := json.Marshal(rec.Spec)
	if err != nil {
		return fmt.Errorf("encode specification: %w", err)
	}
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	players := rec.Players
	if players == nil {
		players = map[string]models.PlayerState{}
	}
	playersJSON, err := json.Marshal(players)
	if err != nil {
		return fmt.Errorf("encode players: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO sessions (id, title, phase, spec_json, state_json, players_json, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	phase = excluded.phase,
	spec_json = excluded.spec_json,
	state_json = excluded.state_json,
	players_json = excluded.players_json,
	updated_at = excluded.updated_at
`,
		rec.ID, rec.Spec.Title, string(rec.State.Phase),
		string(specJSON), string(stateJSON), string(playersJSON),
		toMillis(rec.UpdatedAt),
	); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	var stored int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_events WHERE session_id = ?`, rec.ID,
	).Scan(&stored); err != nil {
		return fmt.Errorf("count events: %w", err)
	}
	if len(events) < stored {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_events WHERE session_id = ?`, rec.ID); err != nil {
			return fmt.Errorf("reset events: %w", err)
		}
		stored = 0
	}
	for seq := stored; seq < len(events); seq++ {
		e := events[seq]
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", e.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO session_events (session_id, seq, event_id, event_type, player_id, timestamp, payload_json)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, rec.ID, seq, e.ID, string(e.Type), e.PlayerID, e.Timestamp, string(payload)); err != nil {
			return fmt.Errorf("append event %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load reads a session and its full event log.
func (s *Store) Load(ctx context.Context, id string) (storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return storage.Record{}, err
	}
	var (
		specJSON, stateJSON, playersJSON string
		updatedAt                        int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT spec_json, state_json, players_json, updated_at FROM sessions WHERE id = ?
`, id).Scan(&specJSON, &stateJSON, &playersJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Record{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Record{}, fmt.Errorf("load session %s: %w", id, err)
	}

	rec := storage.Record{ID: id, UpdatedAt: fromMillis(updatedAt)}
	if err := json.Unmarshal([]byte(specJSON), &rec.Spec); err != nil {
		return storage.Record{}, fmt.Errorf("decode specification: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &rec.State); err != nil {
		return storage.Record{}, fmt.Errorf("decode state: %w", err)
	}
	if err := json.Unmarshal([]byte(playersJSON), &rec.Players); err != nil {
		return storage.Record{}, fmt.Errorf("decode players: %w", err)
	}
	rec.State.Events, err = s.Events(ctx, id, 0)
	if err != nil {
		return storage.Record{}, err
	}
	return rec, nil
}

// Events returns the session's events starting at sequence number from.
func (s *Store) Events(ctx context.Context, id string, from int) ([]models.GameEvent, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT event_id, event_type, player_id, timestamp, payload_json
FROM session_events
WHERE session_id = ? AND seq >= ?
ORDER BY seq
`, id, from)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []models.GameEvent{}
	for rows.Next() {
		var (
			e       models.GameEvent
			typ     string
			payload string
		)
		if err := rows.Scan(&e.ID, &typ, &e.PlayerID, &e.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = models.EventType(typ)
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", e.ID, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// List returns every stored session, most recently updated first.
func (s *Store) List(ctx context.Context) ([]storage.Summary, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, title, phase, updated_at FROM sessions ORDER BY updated_at DESC, id
`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []storage.Summary
	for rows.Next() {
		var (
			sum       storage.Summary
			phase     string
			updatedAt int64
		)
		if err := rows.Scan(&sum.ID, &sum.Title, &phase, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.Phase = models.Phase(phase)
		sum.UpdatedAt = fromMillis(updatedAt)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Delete removes a session and its events.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM session_events WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete events %s: %w", id, err)
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
