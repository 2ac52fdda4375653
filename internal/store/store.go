package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"teesheet/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Store keeps the local reconciliation audit trail and the sheet-sync
// queue in a single sqlite file. Booking state itself lives on the
// backend; nothing here is authoritative for the tee sheet.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

func Open(path string, logger *zerolog.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "store").Logger()
	}
	base.Info().Str("path", path).Msg("audit store initialized")

	return &Store{db: db, logger: base}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS audit_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            unmatched_id INTEGER NOT NULL,
            trackman_id TEXT,
            outcome TEXT NOT NULL,
            route TEXT,
            booking_id INTEGER,
            owner_email TEXT,
            player_count INTEGER,
            fees_recalculated BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            audit_id INTEGER NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_audit_log_unmatched_id ON audit_log(unmatched_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_outcome ON audit_log(outcome)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %v", query, err)
		}
	}
	return nil
}

// RecordOutcome inserts an audit record and enqueues a sheet-sync task
// for it in one transaction. Either both land or neither does.
func (s *Store) RecordOutcome(ctx context.Context, rec *models.AuditRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (unmatched_id, trackman_id, outcome, route, booking_id, owner_email, player_count, fees_recalculated, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UnmatchedID,
		rec.TrackmanID,
		rec.Outcome,
		rec.Route,
		rec.BookingID,
		rec.OwnerEmail,
		rec.PlayerCount,
		rec.FeesRecalculated,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = now

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit payload: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sync_queue (audit_id, payload, status, retry_count, created_at)
         VALUES (?, ?, ?, 0, ?)`,
		id, string(payload), models.TaskPending, now,
	); err != nil {
		return fmt.Errorf("failed to enqueue sync task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit record: %w", err)
	}

	s.logger.Debug().Int64("audit_id", id).Str("outcome", rec.Outcome).Msg("outcome recorded")
	return nil
}

// ListOutcomes returns the most recent audit records.
func (s *Store) ListOutcomes(ctx context.Context, limit int) ([]models.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, unmatched_id, trackman_id, outcome, route, booking_id, owner_email, player_count, fees_recalculated, created_at
         FROM audit_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	var records []models.AuditRecord
	for rows.Next() {
		var rec models.AuditRecord
		err := rows.Scan(
			&rec.ID,
			&rec.UnmatchedID,
			&rec.TrackmanID,
			&rec.Outcome,
			&rec.Route,
			&rec.BookingID,
			&rec.OwnerEmail,
			&rec.PlayerCount,
			&rec.FeesRecalculated,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// PendingTasks returns queue entries ready for the sheet worker: pending
// ones plus retries whose backoff has elapsed.
func (s *Store) PendingTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	query := `SELECT id, audit_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM sync_queue
              WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		var lastError sql.NullString
		err := rows.Scan(
			&t.ID, &t.AuditID, &t.Payload, &t.Status, &t.RetryCount, &lastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		t.LastError = lastError.String
		tasks = append(tasks, t)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return tasks, nil
}

// UpdateTaskStatus advances a sync task through its lifecycle.
func (s *Store) UpdateTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now()

	switch status {
	case models.TaskRetry:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	case models.TaskCompleted, models.TaskFailed:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, &now, id}
	default:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	}

	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}

// FailedTasks returns dead-lettered tasks for operational review.
func (s *Store) FailedTasks(ctx context.Context) ([]models.SyncTask, error) {
	query := `SELECT id, audit_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM sync_queue WHERE status = 'failed' ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		var lastError sql.NullString
		err := rows.Scan(
			&t.ID, &t.AuditID, &t.Payload, &t.Status, &t.RetryCount, &lastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		t.LastError = lastError.String
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
