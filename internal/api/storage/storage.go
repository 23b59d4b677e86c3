package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/chat-transcoder/internal/api/model"
	"github.com/cuongbtq/chat-transcoder/internal/worker/domain"
	"github.com/cuongbtq/chat-transcoder/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `
	job_id, file_id, original_name, target_name,
	channel_id, channel_name, status, error_message,
	enqueued_at, started_at, completed_at, updated_at
`

// Storage reads job history for the status API
type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// GetJobByID returns domain.ErrJobNotFound when no row matches
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	query := `SELECT ` + jobColumns + ` FROM transcode_jobs WHERE job_id = $1`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	ChannelID string
	Status    string
	PageSize  int
	Cursor    *JobCursor
}

type JobCursor struct {
	EnqueuedAt time.Time
	JobID      string
}

// ListJobs returns up to PageSize+1 jobs, newest first, so callers can tell whether more exist
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM transcode_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.ChannelID != "" {
		query += fmt.Sprintf(" AND channel_id = $%d", argIdx)
		args = append(args, filter.ChannelID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (enqueued_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.EnqueuedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY enqueued_at DESC, job_id DESC"

	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []model.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}
