package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/threadkeeper/internal/types"
)

// ErrAlreadyRegistered is returned by CreateUnit for a primary id that exists.
var ErrAlreadyRegistered = errors.New("unit already registered")

// Store handles all database operations
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultPath returns the database location inside cacheDir.
func DefaultPath(cacheDir string) string {
	return filepath.Join(cacheDir, "threadkeeper.db")
}

// Open opens (creating if needed) the SQLite database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// one writer; modernc serializes anyway and this avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", dbPath, err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS units (
		primary_id TEXT PRIMARY KEY,
		author TEXT NOT NULL,
		text TEXT NOT NULL,
		transcript TEXT NOT NULL DEFAULT '',
		media TEXT,
		created_at TEXT,
		url TEXT NOT NULL,
		impressions INTEGER,
		reposts INTEGER NOT NULL DEFAULT 0,
		likes INTEGER NOT NULL DEFAULT 0,
		bookmarks INTEGER NOT NULL DEFAULT 0,
		replies INTEGER NOT NULL DEFAULT 0,
		merged_ids TEXT,
		status TEXT NOT NULL DEFAULT 'unanswered',
		run_id TEXT,
		registered_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		author TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		threads_visited INTEGER NOT NULL DEFAULT 0,
		admitted INTEGER NOT NULL DEFAULT 0,
		persisted INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_units_author ON units(author);
	CREATE INDEX IF NOT EXISTS idx_units_registered_at ON units(registered_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Exists reports whether a Unit with this primary id is registered.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM units WHERE primary_id = ?)`, id).Scan(&exists)
	return exists, err
}

// CreateUnit registers u with its media transcript. The run id is taken
// from ctx when set with WithRunID.
func (s *Store) CreateUnit(ctx context.Context, u types.Unit, transcript string) error {
	mediaJSON, err := json.Marshal(u.Media)
	if err != nil {
		return err
	}
	mergedJSON, err := json.Marshal(u.MergedIDs)
	if err != nil {
		return err
	}

	var impressions sql.NullInt64
	if u.Metrics.Impressions != nil {
		impressions = sql.NullInt64{Int64: int64(*u.Metrics.Impressions), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO units (primary_id, author, text, transcript, media, created_at, url,
			impressions, reposts, likes, bookmarks, replies, merged_ids,
			status, run_id, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(primary_id) DO NOTHING
	`, u.Key(), u.Author, u.Text, transcript, string(mediaJSON), u.CreatedAt, u.URL,
		impressions, u.Metrics.Reposts, u.Metrics.Likes, u.Metrics.Bookmarks, u.Metrics.Replies,
		string(mergedJSON), StatusUnanswered, runIDFrom(ctx), s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert unit %s: %w", u.Key(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, u.Key())
	}
	return nil
}

// ListUnits returns the most recently registered Units, newest first.
// author filters by handle when non-empty.
func (s *Store) ListUnits(ctx context.Context, author string, limit int) ([]UnitRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT primary_id, author, text, transcript, media, created_at, url,
			impressions, reposts, likes, bookmarks, replies, merged_ids,
			status, run_id, registered_at
		FROM units
		WHERE ? = '' OR author = ?
		ORDER BY registered_at DESC, primary_id DESC
		LIMIT ?
	`, author, author, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UnitRow
	for rows.Next() {
		var (
			r                     UnitRow
			primaryID             string
			mediaJSON, mergedJSON sql.NullString
			createdAt, runID      sql.NullString
			impressions           sql.NullInt64
		)
		err := rows.Scan(
			&primaryID, &r.Unit.Author, &r.Unit.Text, &r.Transcript, &mediaJSON, &createdAt, &r.Unit.URL,
			&impressions, &r.Unit.Metrics.Reposts, &r.Unit.Metrics.Likes, &r.Unit.Metrics.Bookmarks, &r.Unit.Metrics.Replies,
			&mergedJSON, &r.Status, &runID, &r.RegisteredAt,
		)
		if err != nil {
			return nil, err
		}
		if r.Unit.PrimaryID, err = strconv.ParseInt(primaryID, 10, 64); err != nil {
			return nil, fmt.Errorf("bad primary id %q: %w", primaryID, err)
		}
		if impressions.Valid {
			v := int(impressions.Int64)
			r.Unit.Metrics.Impressions = &v
		}
		r.Unit.CreatedAt = createdAt.String
		r.RunID = runID.String
		json.Unmarshal([]byte(mediaJSON.String), &r.Unit.Media)
		json.Unmarshal([]byte(mergedJSON.String), &r.Unit.MergedIDs)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetStatus updates the workflow status of a registered Unit.
func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE units SET status = ? WHERE primary_id = ?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unit %s not found", id)
	}
	return nil
}

// StartRun records the start of a run and returns its new id.
func (s *Store) StartRun(ctx context.Context, mode, author string) (Run, error) {
	r := Run{
		ID:        uuid.NewString(),
		Mode:      mode,
		Author:    author,
		StartedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, mode, author, started_at) VALUES (?, ?, ?, ?)
	`, r.ID, r.Mode, r.Author, r.StartedAt)
	if err != nil {
		return Run{}, fmt.Errorf("failed to record run: %w", err)
	}
	return r, nil
}

// FinishRun stores the final counts of r.
func (s *Store) FinishRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, threads_visited = ?, admitted = ?, persisted = ?, failed = ?
		WHERE id = ?
	`, r.FinishedAt.UTC(), r.ThreadsVisited, r.Admitted, r.Persisted, r.Failed, r.ID)
	return err
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, author, started_at, finished_at, threads_visited, admitted, persisted, failed
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			author   sql.NullString
			finished sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Mode, &author, &r.StartedAt, &finished,
			&r.ThreadsVisited, &r.Admitted, &r.Persisted, &r.Failed); err != nil {
			return nil, err
		}
		r.Author = author.String
		r.FinishedAt = finished.Time
		out = append(out, r)
	}
	return out, rows.Err()
}

type runIDKey struct{}

// WithRunID returns a context that stamps units created under it with id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
