// Package history keeps detection runs and already-seen cycle identities in
// SQLite so "new cycle" marking survives process restarts.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"tangle/internal/core/ports"
	"tangle/internal/engine/graph"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

var _ ports.HistoryStore = (*Store)(nil)

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
	if err := ensureSchema(db); err != nil {
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

// RecordRun stores one detection run and upserts every cycle identity it
// carried. Re-recording the same run is idempotent.
func (s *Store) RecordRun(summary ports.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if summary.RunID == "" {
		return fmt.Errorf("run id must not be empty")
	}
	if summary.Timestamp.IsZero() {
		summary.Timestamp = time.Now().UTC()
	}
	ts := summary.Timestamp.UTC().Format(time.RFC3339Nano)

	return s.withRetry("record run", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`
INSERT INTO runs (run_id, level, ts_utc, node_count, edge_count, cycle_count, file_count)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, level) DO UPDATE SET
  ts_utc=excluded.ts_utc,
  node_count=excluded.node_count,
  edge_count=excluded.edge_count,
  cycle_count=excluded.cycle_count,
  file_count=excluded.file_count
`, summary.RunID, string(summary.Level), ts,
			summary.NodeCount, summary.EdgeCount, summary.CycleCount, summary.FileCount); err != nil {
			_ = tx.Rollback()
			return err
		}
		for _, cycleID := range summary.CycleIDs {
			if _, err := tx.Exec(`
INSERT INTO seen_cycles (level, cycle_id, first_run_id, first_seen_utc, last_seen_utc)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(level, cycle_id) DO UPDATE SET last_seen_utc=excluded.last_seen_utc
`, string(summary.Level), cycleID, summary.RunID, ts, ts); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

// SeenCycleIDs returns every cycle identity ever recorded at a level.
func (s *Store) SeenCycleIDs(level graph.Level) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("load seen cycles", func() error {
		var qErr error
		rows, qErr = s.db.Query(`SELECT cycle_id FROM seen_cycles WHERE level = ?`, string(level))
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan cycle id: %w", err)
		}
		seen[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycle ids: %w", err)
	}
	return seen, nil
}

// Trend returns cycle-count samples at a level since the given time, oldest
// first. A zero since returns the full history.
func (s *Store) Trend(level graph.Level, since time.Time) ([]ports.TrendPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT ts_utc, cycle_count, node_count FROM runs WHERE level = ?`
	args := []any{string(level)}
	if !since.IsZero() {
		query += ` AND ts_utc >= ?`
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY ts_utc ASC`

	var rows *sql.Rows
	err := s.withRetry("load trend", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]ports.TrendPoint, 0)
	for rows.Next() {
		var (
			tsRaw string
			point ports.TrendPoint
		)
		if err := rows.Scan(&tsRaw, &point.CycleCount, &point.NodeCount); err != nil {
			return nil, fmt.Errorf("scan trend row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
		}
		point.Timestamp = ts.UTC()
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trend rows: %w", err)
	}
	return points, nil
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
