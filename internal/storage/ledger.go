// Package storage keeps the reload ledger: one row per reload run with its
// per-category outcome, trimmed to a fixed retention.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"aadhaar/internal/core"
	"aadhaar/internal/log"
	"aadhaar/internal/pipeline"
)

// Run is one recorded reload.
type Run struct {
	RunID      string                    `json:"run_id"`
	Version    uint64                    `json:"version"`
	Status     pipeline.Status           `json:"status"`
	Trigger    string                    `json:"trigger"`
	StartedAt  time.Time                 `json:"started_at"`
	DurationMs int64                     `json:"duration_ms"`
	Records    int                       `json:"records"`
	Cause      string                    `json:"cause,omitempty"`
	Categories []pipeline.CategoryReport `json:"categories"`
}

type Ledger struct {
	db        *sql.DB
	retention int
	logger    *log.Logger
}

// NewLedger opens the ledger database and applies migrations. Plain file
// paths get their parent directory created.
func NewLedger(dsn string, retention int, logger *log.Logger) (*Ledger, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if retention < 1 {
		retention = 1
	}

	if !strings.HasPrefix(dsn, "file:") && !strings.Contains(dsn, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single long-lived connection: one writer at a time, and in-memory
	// databases live exactly as long as that connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Ledger{
		db:        db,
		retention: retention,
		logger:    logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (l *Ledger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// ReloadCompleted implements pipeline.Observer.
func (l *Ledger) ReloadCompleted(ctx context.Context, _ *pipeline.Snapshot, report pipeline.Report) {
	if err := l.RecordRun(ctx, report); err != nil {
		l.logger.ErrorContext(ctx, "Failed to record reload run",
			log.FieldRunID, report.RunID,
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeDatabase,
		)
	}
}

// RecordRun stores a reload report and trims old runs.
func (l *Ledger) RecordRun(ctx context.Context, report pipeline.Report) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reload_runs (run_id, version, status, triggered_by, started_at, duration_ms, records, cause)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		int64(report.Version),
		string(report.Status),
		report.Trigger,
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.DurationMs,
		report.Records(),
		report.Cause,
	)
	if err != nil {
		return fmt.Errorf("insert reload run: %w", err)
	}

	for _, c := range report.Categories {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reload_categories (run_id, category, files, rows_read, rows_kept, rows_unknown, missing_dates, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, c.Category.String(), c.Files, c.RowsRead, c.RowsKept, c.RowsUnknown, c.MissingDates, c.Error,
		)
		if err != nil {
			return fmt.Errorf("insert category %s: %w", c.Category, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM reload_runs
		WHERE id NOT IN (SELECT id FROM reload_runs ORDER BY id DESC LIMIT ?)`, l.retention); err != nil {
		return fmt.Errorf("trim reload runs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM reload_categories
		WHERE run_id NOT IN (SELECT run_id FROM reload_runs)`); err != nil {
		return fmt.Errorf("trim reload categories: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	l.logger.DebugContext(ctx, "Reload run recorded",
		log.FieldRunID, report.RunID,
		log.FieldStatus, string(report.Status),
	)
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		return []Run{}, nil
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, version, status, triggered_by, started_at, duration_ms, records, cause
		FROM reload_runs
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reload runs: %w", err)
	}

	runs := []Run{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			r         Run
			version   int64
			status    string
			startedAt string
		)
		if err := rows.Scan(&r.RunID, &version, &status, &r.Trigger, &startedAt, &r.DurationMs, &r.Records, &r.Cause); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan reload run: %w", err)
		}
		r.Version = uint64(version)
		r.Status = pipeline.Status(status)
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
		}
		r.Categories = []pipeline.CategoryReport{}
		index[r.RunID] = len(runs)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate reload runs: %w", err)
	}
	rows.Close()

	if len(runs) == 0 {
		return runs, nil
	}

	crows, err := l.db.QueryContext(ctx, `
		SELECT run_id, category, files, rows_read, rows_kept, rows_unknown, missing_dates, error
		FROM reload_categories
		WHERE run_id IN (SELECT run_id FROM reload_runs ORDER BY id DESC LIMIT ?)
		ORDER BY rowid`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reload categories: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var (
			runID    string
			category string
			c        pipeline.CategoryReport
		)
		if err := crows.Scan(&runID, &category, &c.Files, &c.RowsRead, &c.RowsKept, &c.RowsUnknown, &c.MissingDates, &c.Error); err != nil {
			return nil, fmt.Errorf("scan reload category: %w", err)
		}
		c.Category = core.Category(category)
		if i, ok := index[runID]; ok {
			runs[i].Categories = append(runs[i].Categories, c)
		}
	}
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reload categories: %w", err)
	}

	return runs, nil
}

// LastRun returns the most recent run, if any.
func (l *Ledger) LastRun(ctx context.Context) (Run, bool, error) {
	runs, err := l.RecentRuns(ctx, 1)
	if err != nil || len(runs) == 0 {
		return Run{}, false, err
	}
	return runs[0], true, nil
}
