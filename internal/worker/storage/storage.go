package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/chat-transcoder/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

// Storage records job history in PostgreSQL
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// CreateJob inserts a newly queued job
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO transcode_jobs (
			job_id, file_id, original_name, target_name,
			channel_id, channel_name, status, enqueued_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, NOW()
		)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.FileID,
		job.OriginalName,
		job.TargetName,
		job.ChannelID,
		job.ChannelName,
		job.Status,
		job.EnqueuedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// UpdateJobStatus stores the job status, error message and stage timestamps
func (s *Storage) UpdateJobStatus(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE transcode_jobs
		SET status = $1,
			error_message = $2,
			started_at = $3,
			completed_at = $4,
			updated_at = NOW()
		WHERE job_id = $5
	`

	result, err := s.db.ExecContext(ctx, query,
		job.Status,
		job.Error,
		nullTime(job.StartedAt),
		nullTime(job.FinishedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}

	s.logger.Debug("Job status updated",
		slog.String("job_id", job.ID),
		slog.String("status", job.Status),
	)

	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
