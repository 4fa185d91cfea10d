// Package record persists run results into a per-run SQLite database. Every
// run gets its own file; an existing file is never overwritten, so a rerun
// with the same id fails fast instead of corrupting earlier measurements.
package record

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mytestbed/domain"
	"mytestbed/helpers"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	// sqlite driver registration
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// ErrRunFileExists is returned by NewRecorder when the run database file is
// already present.
var ErrRunFileExists = errors.New("run database already exists")

// ErrRecorderClosed is returned by the record methods after Close.
var ErrRecorderClosed = errors.New("recorder is closed")

const defaultBatchSize = 256

const schema = `
CREATE TABLE samples (
	client_id   TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	send_ms     INTEGER NOT NULL,
	received_ms INTEGER NOT NULL,
	response_ms INTEGER NOT NULL,
	trail       TEXT NOT NULL
);

CREATE TABLE summary (
	avg_response_ms REAL NOT NULL,
	max_response_ms INTEGER NOT NULL,
	observed        INTEGER NOT NULL,
	dropped         INTEGER NOT NULL
);

CREATE TABLE summary_rows (
	label  TEXT NOT NULL,
	avg_ms REAL NOT NULL
);
`

// Config holds the recorder settings. An empty RunID gets a generated xid;
// BatchSize bounds the in-memory sample buffer (default 256).
type Config struct {
	Dir       string
	RunID     string
	BatchSize int
}

// Recorder implements interfaces.ResultSink over a SQLite file
// <dir>/<runID>.sqlite3. Samples are buffered and written in batched
// transactions; a process-exit hook flushes whatever is still pending.
type Recorder struct {
	db     *sql.DB
	logger log.Logger
	runID  string
	path   string
	batch  int

	mu      sync.Mutex
	pending []domain.Sample
	closed  bool
}

// NewRecorder creates the run database and its schema. Panics on empty
// directory or nil logger; returns ErrRunFileExists when the file is already
// there.
func NewRecorder(cfg Config, logger log.Logger) (*Recorder, error) {
	helpers.StrPanic(cfg.Dir, "record.recorder.go: directory is required")
	logger = log.With(helpers.NilPanic(logger, "record.recorder.go: logger is required"), "component", "recorder")

	runID := cfg.RunID
	if runID == "" {
		runID = xid.New().String()
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	path := filepath.Join(cfg.Dir, runID+".sqlite3")
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrRunFileExists)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create run schema: %w", err)
	}

	r := &Recorder{
		db:     db,
		logger: logger,
		runID:  runID,
		path:   path,
		batch:  batch,
	}
	atexit.Register(func() { _ = r.Flush() })
	level.Info(logger).Log("msg", "run database created", "path", path)
	return r, nil
}

// RunID returns the run identifier the database file is named after.
func (r *Recorder) RunID() string {
	return r.runID
}

// Path returns the database file path.
func (r *Recorder) Path() string {
	return r.path
}

func (r *Recorder) RecordSample(s domain.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}
	r.pending = append(r.pending, s)
	if len(r.pending) >= r.batch {
		return r.flushLocked()
	}
	return nil
}

func (r *Recorder) RecordSummary(sum domain.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}
	if err := r.flushLocked(); err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin summary transaction: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO summary VALUES (?, ?, ?, ?)",
		sum.AvgResponseMillis, sum.MaxResponseMillis, sum.Observed, sum.Dropped,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert summary: %w", err)
	}
	for _, row := range sum.Rows {
		if _, err := tx.Exec("INSERT INTO summary_rows VALUES (?, ?)", row.Label, row.AvgMillis); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert summary row %s: %w", row.Label, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit summary: %w", err)
	}
	return nil
}

// Flush writes every buffered sample in one transaction. A no-op on an
// already closed recorder: Close flushes before releasing the database.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	if len(r.pending) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin sample transaction: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO samples VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare sample insert: %w", err)
	}
	for _, s := range r.pending {
		if _, err := stmt.Exec(s.ClientID, s.Seq, s.SendMillis, s.ReceivedMillis, s.ResponseMillis, s.Trail); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("insert sample seq %d: %w", s.Seq, err)
		}
	}
	_ = stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit samples: %w", err)
	}
	r.pending = r.pending[:0]
	return nil
}

// Close flushes and releases the database. Idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	flushErr := r.flushLocked()
	r.closed = true
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close run database: %w", err)
	}
	return flushErr
}
