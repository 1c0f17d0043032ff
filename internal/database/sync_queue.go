package database

import (
	"context"
	"fmt"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/models"
)

const (
	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

const syncTaskColumns = `id, task_type, appointment_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = SyncStatusPending
	}
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO sync_queue (task_type, appointment_id, payload, status, retry_count, last_error, created_at, next_retry_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskType, task.AppointmentID, task.Payload, task.Status, task.RetryCount, task.LastError, now, task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

func (db *DB) GetSyncTask(ctx context.Context, id int64) (*models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+syncTaskColumns+` FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync task: %w", err)
	}
	tasks, err := scanSyncTasks(rows)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("sync task %d: %w", id, ErrNotFound)
	}
	return &tasks[0], nil
}

// GetPendingSyncTasks returns pending and due retry tasks, oldest first.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+syncTaskColumns+` FROM sync_queue
         WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
         ORDER BY created_at ASC LIMIT ?`,
		SyncStatusPending, SyncStatusRetry, time.Now(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending sync tasks: %w", err)
	}
	return scanSyncTasks(rows)
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now()

	switch status {
	case SyncStatusRetry:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	case SyncStatusCompleted, SyncStatusFailed:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, now, id}
	default:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+syncTaskColumns+` FROM sync_queue WHERE status = ? ORDER BY created_at DESC`, SyncStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed sync tasks: %w", err)
	}
	return scanSyncTasks(rows)
}

type sqlRows interface {
	rowScanner
	Next() bool
	Err() error
	Close() error
}

func scanSyncTasks(rows sqlRows) ([]models.SyncTask, error) {
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		if err := rows.Scan(
			&t.ID, &t.TaskType, &t.AppointmentID, &t.Payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
