// Package journal keeps a SQLite record of runs: when they started, how
// the host was throttled, what the calibration found, every budget
// escalation, and how each run ended.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gitlab.com/tinyland/lab/pulse-screen/schedule"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	host         TEXT NOT NULL,
	version      TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	interval_ms  INTEGER NOT NULL,
	warmup       INTEGER NOT NULL,
	startup_ms   INTEGER NOT NULL,
	tier         INTEGER NOT NULL,
	finished_at  TEXT,
	exit_code    INTEGER,
	exit_reason  TEXT,
	samples      INTEGER,
	drops        INTEGER
);

CREATE TABLE IF NOT EXISTS calibrations (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id           TEXT NOT NULL,
	created_at       TEXT NOT NULL,
	samples          INTEGER NOT NULL,
	generate_mean_ms REAL NOT NULL,
	generate_sd_ms   REAL NOT NULL,
	present_mean_ms  REAL NOT NULL,
	present_sd_ms    REAL NOT NULL,
	baseline_gen_ms  REAL NOT NULL,
	baseline_pres_ms REAL NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS escalations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	dropped     INTEGER NOT NULL,
	escalation  INTEGER NOT NULL,
	generate_ms REAL NOT NULL,
	present_ms  REAL NOT NULL,
	collect_ms  REAL NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// ErrNoRun is returned when a run-scoped write happens before BeginRun.
var ErrNoRun = errors.New("journal: no run started")

// RunInfo describes a run at startup.
type RunInfo struct {
	Host     string
	Version  string
	Interval time.Duration
	Warmup   int
	Startup  time.Duration
	Tier     int
}

// Run is a journaled run.
type Run struct {
	ID string
	RunInfo
	StartedAt time.Time
	// Finished is false for runs that are still going or that crashed
	// before EndRun.
	Finished   bool
	FinishedAt time.Time
	ExitCode   int
	ExitReason string
	Samples    uint64
	Drops      uint64

	Calibrations int
	Escalations  int
}

// Journal writes run records. Its observer methods implement
// schedule.Observer.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger

	mu    sync.Mutex
	runID string
}

// Open opens or creates the journal database at path.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db, logger: logger}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RunID returns the current run's identifier, or "" before BeginRun.
func (j *Journal) RunID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runID
}

// BeginRun records a new run and makes it current.
func (j *Journal) BeginRun(info RunInfo) (string, error) {
	id := uuid.New().String()
	_, err := j.db.Exec(
		`INSERT INTO runs (run_id, host, version, started_at, interval_ms, warmup, startup_ms, tier)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, info.Host, info.Version, now(), info.Interval.Milliseconds(), info.Warmup,
		info.Startup.Milliseconds(), info.Tier,
	)
	if err != nil {
		return "", fmt.Errorf("journal: begin run: %w", err)
	}

	j.mu.Lock()
	j.runID = id
	j.mu.Unlock()
	return id, nil
}

// EndRun records how the current run finished.
func (j *Journal) EndRun(code int, reason string, stats schedule.RunStats) error {
	id := j.RunID()
	if id == "" {
		return ErrNoRun
	}
	_, err := j.db.Exec(
		`UPDATE runs SET finished_at = ?, exit_code = ?, exit_reason = ?, samples = ?, drops = ?
		 WHERE run_id = ?`,
		now(), code, reason, int64(stats.Samples), int64(stats.Drops), id,
	)
	if err != nil {
		return fmt.Errorf("journal: end run: %w", err)
	}
	return nil
}

// RecordCalibration stores a completed warm-up for the current run.
func (j *Journal) RecordCalibration(c schedule.Calibration) error {
	id := j.RunID()
	if id == "" {
		return ErrNoRun
	}
	_, err := j.db.Exec(
		`INSERT INTO calibrations (run_id, created_at, samples, generate_mean_ms, generate_sd_ms,
		   present_mean_ms, present_sd_ms, baseline_gen_ms, baseline_pres_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, now(), c.Samples, ms(c.Generate.Mean), ms(c.Generate.SD),
		ms(c.Present.Mean), ms(c.Present.SD), ms(c.Baseline.Generate), ms(c.Baseline.Present),
	)
	if err != nil {
		return fmt.Errorf("journal: record calibration: %w", err)
	}
	return nil
}

// RecordEscalation stores a budget escalation for the current run.
func (j *Journal) RecordEscalation(d schedule.DropStats, b schedule.Budget) error {
	id := j.RunID()
	if id == "" {
		return ErrNoRun
	}
	_, err := j.db.Exec(
		`INSERT INTO escalations (run_id, created_at, dropped, escalation, generate_ms, present_ms, collect_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, now(), int64(d.Dropped), d.Escalations, ms(b.Generate), ms(b.Present), ms(b.Collect),
	)
	if err != nil {
		return fmt.Errorf("journal: record escalation: %w", err)
	}
	return nil
}

// CycleFinished implements schedule.Observer. Individual cycles are not
// journaled.
func (j *Journal) CycleFinished(schedule.Outcome, schedule.Budget) {}

// Calibrated implements schedule.Observer.
func (j *Journal) Calibrated(c schedule.Calibration) {
	if err := j.RecordCalibration(c); err != nil {
		j.logger.Warn("journal write failed", "error", err)
	}
}

// Escalated implements schedule.Observer.
func (j *Journal) Escalated(d schedule.DropStats, b schedule.Budget) {
	if err := j.RecordEscalation(d, b); err != nil {
		j.logger.Warn("journal write failed", "error", err)
	}
}

// Runs returns up to limit runs, newest first.
func (j *Journal) Runs(limit int) ([]Run, error) {
	rows, err := j.db.Query(
		`SELECT r.run_id, r.host, r.version, r.started_at, r.interval_ms, r.warmup, r.startup_ms, r.tier,
		        r.finished_at, r.exit_code, r.exit_reason, r.samples, r.drops,
		        (SELECT COUNT(*) FROM calibrations c WHERE c.run_id = r.run_id),
		        (SELECT COUNT(*) FROM escalations e WHERE e.run_id = r.run_id)
		 FROM runs r ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                     Run
			started               string
			intervalMs, startupMs int64
			finished, reason      sql.NullString
			code, samples, drops  sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Host, &r.Version, &started, &intervalMs, &r.Warmup, &startupMs, &r.Tier,
			&finished, &code, &reason, &samples, &drops, &r.Calibrations, &r.Escalations); err != nil {
			return nil, fmt.Errorf("journal: scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.Interval = time.Duration(intervalMs) * time.Millisecond
		r.Startup = time.Duration(startupMs) * time.Millisecond
		if finished.Valid {
			r.Finished = true
			r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
			r.ExitCode = int(code.Int64)
			r.ExitReason = reason.String
			r.Samples = uint64(samples.Int64)
			r.Drops = uint64(drops.Int64)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
