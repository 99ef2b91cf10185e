// Package history persists per-run parse and diff records in sqlite so
// watch sessions can be inspected after the fact.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// RunKind names what a recorded run did.
type RunKind string

const (
	RunParse    RunKind = "parse"
	RunReparse  RunKind = "reparse"
	RunDiff     RunKind = "diff"
	RunFallback RunKind = "fallback"
)

// Run is one recorded operation. Zero ID and Timestamp are filled on save.
type Run struct {
	ID         string
	Kind       RunKind
	Language   string
	Path       string
	Bytes      int
	Nodes      int
	ErrorNodes int
	Ops        int
	Duration   time.Duration
	OK         bool
	Detail     string
	Timestamp  time.Time
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// RecordRun inserts one run. Returns the run ID.
func (s *Store) RecordRun(run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(run.ID) == "" {
		run.ID = uuid.NewString()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}
	if run.Kind == "" {
		return "", fmt.Errorf("run kind must not be empty")
	}

	query := `
INSERT INTO runs (
  id, kind, language, path, bytes, nodes, error_nodes, ops, duration_ms, ok, detail, ts_utc
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	err := s.withRetry("record run", func() error {
		_, err := s.db.Exec(
			query,
			run.ID,
			string(run.Kind),
			run.Language,
			run.Path,
			run.Bytes,
			run.Nodes,
			run.ErrorNodes,
			run.Ops,
			float64(run.Duration)/float64(time.Millisecond),
			boolToInt(run.OK),
			run.Detail,
			run.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// RecentRuns returns up to limit runs, newest first. An empty kind matches
// every run.
func (s *Store) RecentRuns(limit int, kind RunKind) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	base := `
SELECT id, kind, language, path, bytes, nodes, error_nodes, ops, duration_ms, ok, detail, ts_utc
FROM runs
`
	args := make([]any, 0, 2)
	if kind != "" {
		base += " WHERE kind = ?"
		args = append(args, string(kind))
	}
	base += " ORDER BY ts_utc DESC LIMIT ?"
	args = append(args, limit)

	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.Query(base, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var (
			run        Run
			kindRaw    string
			durationMS float64
			okRaw      int
			tsRaw      string
		)
		if err := rows.Scan(
			&run.ID,
			&kindRaw,
			&run.Language,
			&run.Path,
			&run.Bytes,
			&run.Nodes,
			&run.ErrorNodes,
			&run.Ops,
			&durationMS,
			&okRaw,
			&run.Detail,
			&tsRaw,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}

		run.Kind = RunKind(kindRaw)
		run.Duration = time.Duration(durationMS * float64(time.Millisecond))
		run.OK = okRaw != 0

		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
		}
		run.Timestamp = ts.UTC()

		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}

// Prune deletes all but the newest keep runs.
func (s *Store) Prune(keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep <= 0 {
		return fmt.Errorf("keep must be positive, got %d", keep)
	}
	return s.withRetry("prune runs", func() error {
		_, err := s.db.Exec(`
DELETE FROM runs WHERE id NOT IN (
  SELECT id FROM runs ORDER BY ts_utc DESC LIMIT ?
)`, keep)
		return err
	})
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
