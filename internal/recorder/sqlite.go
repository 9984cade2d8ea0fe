package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run metadata to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets ad-hoc readers query while a cycle is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS source_attempts (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			run_id      TEXT,
			category    TEXT NOT NULL,
			source      TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			detail      TEXT,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_ts ON source_attempts(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_run ON source_attempts(run_id)`,

		`CREATE TABLE IF NOT EXISTS collection_cycles (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			run_id       TEXT,
			started_at   INTEGER,
			duration_ms  INTEGER,
			market_ok    INTEGER,
			financial_ok INTEGER,
			news_ok      INTEGER,
			sources      TEXT,
			error        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON collection_cycles(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordAttempt(evt *AttemptEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO source_attempts
		(timestamp, run_id, category, source, outcome, detail, duration_ms)
		VALUES (?,?,?,?,?,?,?)`,
		time.Now().Unix(), evt.RunID, evt.Category, evt.Source,
		evt.Outcome, evt.Detail, evt.Duration.Milliseconds(),
	)
	return err
}

func (r *SQLiteRecorder) RecordCycle(evt *CycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO collection_cycles
		(timestamp, run_id, started_at, duration_ms, market_ok, financial_ok, news_ok, sources, error)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), evt.RunID, evt.StartedAt.Unix(), evt.Duration.Milliseconds(),
		boolInt(evt.Market), boolInt(evt.Financial), boolInt(evt.News),
		strings.Join(evt.Sources, ","), evt.Error,
	)
	return err
}

// CountAttempts returns how many attempts were recorded for a run.
func (r *SQLiteRecorder) CountAttempts(runID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM source_attempts WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
