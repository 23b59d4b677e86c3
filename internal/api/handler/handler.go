package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/chat-transcoder/internal/api/model"
	"github.com/cuongbtq/chat-transcoder/internal/api/storage"
	"github.com/cuongbtq/chat-transcoder/internal/worker"
)

// JobReader reads job history
type JobReader interface {
	GetJobByID(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, error)
}

// QueueStatus reports the live pipeline state
type QueueStatus interface {
	Status() worker.Snapshot
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers.
// Jobs and Database are nil when job history is disabled.
type Dependencies struct {
	Logger      *slog.Logger
	ServiceName string
	Jobs        JobReader
	Queue       QueueStatus
	Database    HealthChecker
}

// JobHandler handles job history and queue status requests
type JobHandler struct {
	logger *slog.Logger
	jobs   JobReader
	queue  QueueStatus
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
		queue:  deps.Queue,
	}
}
