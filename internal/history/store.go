// Package history records every conductor run in a SQLite database so past
// results can be listed and compared.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/testconductor/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// ErrRunNotFound is returned when a run ID has no record.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID       string
	StartedAt   time.Time
	Duration    time.Duration
	FailedPhase string
	Error       string
	ExitCode    int
	Total       int
	Passed      int
	Success     bool
	ServiceLog  string
}

// TargetStats aggregates the recorded outcomes of one target across runs.
type TargetStats struct {
	Target      string
	Runs        int
	Passed      int
	LastStatus  models.TestStatus
	AvgDuration time.Duration
}

// PassRate returns the fraction of recorded runs in which the target passed.
func (t TargetStats) PassRate() float64 {
	if t.Runs == 0 {
		return 0
	}
	return float64(t.Passed) / float64(t.Runs)
}

// Store manages the run history database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the history database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps pragmas and in-memory databases consistent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores a run and its outcomes in one transaction.
func (s *Store) RecordRun(ctx context.Context, report models.RunReport) error {
	if report.RunID == "" {
		return errors.New("record run: empty run ID")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	errMsg := ""
	if report.Error != nil {
		errMsg = report.Error.Error()
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(run_id, started_at_ms, duration_ms, failed_phase, error_message, exit_code, total, passed, success, service_log)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.StartedAt.UnixMilli(),
		report.Duration.Milliseconds(),
		report.Phase.String(),
		errMsg,
		report.ExitCode,
		report.Summary.Total,
		report.Summary.Passed,
		report.Summary.OverallSuccess && report.Phase == models.PhaseNone,
		report.ServiceLog,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, o := range report.Outcomes {
		var exitCode sql.NullInt64
		if o.ExitCode != nil {
			exitCode = sql.NullInt64{Int64: int64(*o.ExitCode), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO outcomes
			(run_id, position, target, status, exit_code, message, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, i, o.Target, string(o.Status), exitCode, o.Message, o.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert outcome %q: %w", o.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, most recent first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT
		run_id, started_at_ms, duration_ms, failed_phase, error_message, exit_code, total, passed, success, service_log
		FROM runs
		ORDER BY started_at_ms DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run by ID, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		run_id, started_at_ms, duration_ms, failed_phase, error_message, exit_code, total, passed, success, service_log
		FROM runs WHERE run_id = ?`, runID)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var (
		r                     RunRecord
		startedMs, durationMs int64
	)
	err := sc.Scan(&r.RunID, &startedMs, &durationMs, &r.FailedPhase, &r.Error,
		&r.ExitCode, &r.Total, &r.Passed, &r.Success, &r.ServiceLog)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = time.UnixMilli(startedMs)
	r.Duration = time.Duration(durationMs) * time.Millisecond
	return r, nil
}

// RunOutcomes returns the outcomes of a run in target order.
func (s *Store) RunOutcomes(ctx context.Context, runID string) ([]models.TestOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT target, status, exit_code, message, duration_ms
		FROM outcomes WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []models.TestOutcome{}
	for rows.Next() {
		var (
			o          models.TestOutcome
			status     string
			exitCode   sql.NullInt64
			durationMs int64
		)
		if err := rows.Scan(&o.Target, &status, &exitCode, &o.Message, &durationMs); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = models.TestStatus(status)
		if exitCode.Valid {
			code := int(exitCode.Int64)
			o.ExitCode = &code
		}
		o.Duration = time.Duration(durationMs) * time.Millisecond
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}

// TargetStatistics aggregates outcomes per target, least reliable first.
func (s *Store) TargetStatistics(ctx context.Context, limit int) ([]TargetStats, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			o.target,
			COUNT(*) AS runs,
			SUM(CASE WHEN o.status = ? THEN 1 ELSE 0 END) AS passed,
			CAST(AVG(o.duration_ms) AS INTEGER) AS avg_ms,
			(SELECT o2.status FROM outcomes o2
				JOIN runs r2 ON r2.run_id = o2.run_id
				WHERE o2.target = o.target
				ORDER BY r2.started_at_ms DESC, r2.rowid DESC LIMIT 1) AS last_status
		FROM outcomes o
		GROUP BY o.target
		ORDER BY CAST(SUM(CASE WHEN o.status = ? THEN 1 ELSE 0 END) AS REAL) / COUNT(*) ASC,
			COUNT(*) DESC, o.target ASC
		LIMIT ?`, string(models.StatusPassed), string(models.StatusPassed), limit)
	if err != nil {
		return nil, fmt.Errorf("query target stats: %w", err)
	}
	defer rows.Close()

	var stats []TargetStats
	for rows.Next() {
		var (
			ts         TargetStats
			avgMs      int64
			lastStatus string
		)
		if err := rows.Scan(&ts.Target, &ts.Runs, &ts.Passed, &avgMs, &lastStatus); err != nil {
			return nil, fmt.Errorf("scan target stats: %w", err)
		}
		ts.AvgDuration = time.Duration(avgMs) * time.Millisecond
		ts.LastStatus = models.TestStatus(lastStatus)
		stats = append(stats, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate target stats: %w", err)
	}
	return stats, nil
}

// PruneRuns deletes runs older than keepDays together with their outcomes.
// Zero or negative keepDays keeps everything.
func (s *Store) PruneRuns(ctx context.Context, keepDays int) (int64, error) {
	if keepDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -keepDays).UnixMilli()
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at_ms < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return deleted, nil
}
