package model

import (
	"database/sql"
	"time"
)

// Job is a row of the transcode_jobs history table
type Job struct {
	JobID        string         `db:"job_id"`
	FileID       string         `db:"file_id"`
	OriginalName string         `db:"original_name"`
	TargetName   string         `db:"target_name"`
	ChannelID    string         `db:"channel_id"`
	ChannelName  string         `db:"channel_name"`
	Status       string         `db:"status"`
	ErrorMessage sql.NullString `db:"error_message"`
	EnqueuedAt   time.Time      `db:"enqueued_at"`
	StartedAt    sql.NullTime   `db:"started_at"`
	CompletedAt  sql.NullTime   `db:"completed_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}
