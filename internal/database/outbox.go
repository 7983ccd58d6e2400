package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"consultdesk/internal/models"
)

const outboxColumns = `id, channel, session_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error {
	query := `INSERT INTO notification_outbox (channel, session_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		task.Channel,
		task.SessionID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now

	return nil
}

// GetPendingOutboxTasks returns tasks that are due, oldest first.
func (db *DB) GetPendingOutboxTasks(ctx context.Context, limit int) ([]*models.OutboxTask, error) {
	query := `SELECT ` + outboxColumns + `
              FROM notification_outbox
              WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC, id ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending outbox tasks: %w", err)
	}
	defer rows.Close()
	return scanOutboxTasks(rows)
}

func (db *DB) GetOutboxTask(ctx context.Context, id int64) (*models.OutboxTask, error) {
	query := `SELECT ` + outboxColumns + ` FROM notification_outbox WHERE id = ?`
	rows, err := db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox task: %w", err)
	}
	defer rows.Close()

	tasks, err := scanOutboxTasks(rows)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, sql.ErrNoRows
	}
	return tasks[0], nil
}

// UpdateOutboxTaskStatus moves a task on. Retry bumps the retry counter;
// completed and failed stamp processed_at.
func (db *DB) UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now().UTC()

	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}
	if nextRetryAt != nil {
		utc := nextRetryAt.UTC()
		nextRetryAt = &utc
	}

	switch status {
	case models.TaskStatusRetry:
		query = `UPDATE notification_outbox SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, lastError, nextRetryAt, id}
	case models.TaskStatusCompleted, models.TaskStatusFailed:
		query = `UPDATE notification_outbox SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, lastError, nextRetryAt, &now, id}
	default:
		query = `UPDATE notification_outbox SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, lastError, nextRetryAt, id}
	}

	_, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update outbox task status: %w", err)
	}
	return nil
}

// ClaimOutboxTask marks a due task as processing and returns the stored row.
// It returns nil when the task was claimed or finished elsewhere, or is
// still waiting for its retry time; a copy taken from a queue earlier may be
// stale, so callers work from the returned row.
func (db *DB) ClaimOutboxTask(ctx context.Context, id int64) (*models.OutboxTask, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE notification_outbox SET status = 'processing'
         WHERE id = ? AND status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)`,
		id, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, nil
	}

	rows, err := tx.QueryContext(ctx, `SELECT `+outboxColumns+` FROM notification_outbox WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read claimed outbox task: %w", err)
	}
	tasks, err := scanOutboxTasks(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return tasks[0], nil
}

// RequeueProcessingOutboxTasks returns tasks left in processing by a crashed
// worker to the retry state.
func (db *DB) RequeueProcessingOutboxTasks(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE notification_outbox SET status = 'retry', next_retry_at = NULL WHERE status = 'processing'`)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue outbox tasks: %w", err)
	}
	return res.RowsAffected()
}

func (db *DB) GetFailedOutboxTasks(ctx context.Context) ([]*models.OutboxTask, error) {
	query := `SELECT ` + outboxColumns + `
              FROM notification_outbox WHERE status = 'failed' ORDER BY created_at DESC, id DESC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed outbox tasks: %w", err)
	}
	defer rows.Close()
	return scanOutboxTasks(rows)
}

// CountByStatus reports how many tasks sit in each status.
func (db *DB) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM notification_outbox GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count outbox tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func scanOutboxTasks(rows *sql.Rows) ([]*models.OutboxTask, error) {
	var tasks []*models.OutboxTask
	for rows.Next() {
		var t models.OutboxTask
		var lastError sql.NullString
		var processedAt, nextRetryAt sql.NullTime
		err := rows.Scan(
			&t.ID, &t.Channel, &t.SessionID, &t.Payload, &t.Status, &t.RetryCount, &lastError, &t.CreatedAt, &processedAt, &nextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox task: %w", err)
		}
		if lastError.Valid {
			t.LastError = &lastError.String
		}
		if processedAt.Valid {
			t.ProcessedAt = &processedAt.Time
		}
		if nextRetryAt.Valid {
			t.NextRetryAt = &nextRetryAt.Time
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}
