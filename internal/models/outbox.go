package models

import "time"

// OutboxTask is a queued notification delivery for one channel.
type OutboxTask struct {
	ID          int64      `json:"id"`
	Channel     string     `json:"channel"`
	SessionID   string     `json:"session_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}
