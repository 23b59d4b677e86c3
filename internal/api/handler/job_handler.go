package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/chat-transcoder/internal/api/dto"
	"github.com/cuongbtq/chat-transcoder/internal/api/model"
	"github.com/cuongbtq/chat-transcoder/internal/api/storage"
	"github.com/cuongbtq/chat-transcoder/internal/worker/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// GetQueue handles GET /api/v1/queue
func (h *JobHandler) GetQueue(c *gin.Context) {
	snap := h.queue.Status()

	resp := dto.QueueStatusResponse{
		State:       string(snap.State),
		Busy:        snap.Busy,
		QueueLength: snap.QueueLength,
		Queued:      make([]dto.JobDTO, len(snap.Queued)),
		Completed:   snap.Completed,
		Failed:      snap.Failed,
	}
	for i := range snap.Queued {
		resp.Queued[i] = liveJobDTO(&snap.Queued[i])
	}
	if snap.Current != nil {
		current := liveJobDTO(snap.Current)
		resp.Current = &current
	}
	if !snap.LastDrainedAt.IsZero() {
		resp.LastDrainedAt = snap.LastDrainedAt.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Warn("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Job history is disabled",
		})
		return
	}

	job, err := h.jobs.GetJobByID(c.Request.Context(), jobID)
	if errors.Is(err, domain.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, historyJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with optional channel/status filters and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Job history is disabled",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.JobFilter{
		ChannelID: req.ChannelID,
		Status:    req.Status,
		PageSize:  req.PageSize,
		Cursor:    cursor,
	}

	jobs, err := h.jobs.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	resp := dto.ListJobsResponse{Jobs: make([]dto.JobDTO, len(jobs))}
	for i := range jobs {
		resp.Jobs[i] = historyJobDTO(&jobs[i])
	}

	if hasMore {
		last := jobs[len(jobs)-1]
		resp.NextCursor = EncodeJobCursor(&storage.JobCursor{
			EnqueuedAt: last.EnqueuedAt,
			JobID:      last.JobID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func historyJobDTO(job *model.Job) dto.JobDTO {
	return dto.JobDTO{
		JobID:        job.JobID,
		FileID:       job.FileID,
		OriginalName: job.OriginalName,
		TargetName:   job.TargetName,
		ChannelID:    job.ChannelID,
		ChannelName:  job.ChannelName,
		Status:       job.Status,
		Error:        job.ErrorMessage.String,
		EnqueuedAt:   job.EnqueuedAt.Format(time.RFC3339),
		StartedAt:    formatNullTime(job.StartedAt),
		CompletedAt:  formatNullTime(job.CompletedAt),
	}
}

func liveJobDTO(job *domain.Job) dto.JobDTO {
	out := dto.JobDTO{
		JobID:        job.ID,
		FileID:       job.FileID,
		OriginalName: job.OriginalName,
		TargetName:   job.TargetName,
		ChannelID:    job.ChannelID,
		ChannelName:  job.ChannelName,
		Status:       job.Status,
		Error:        job.Error,
		EnqueuedAt:   job.EnqueuedAt.Format(time.RFC3339),
	}
	if !job.StartedAt.IsZero() {
		out.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	return out
}

func formatNullTime(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format(time.RFC3339)
}
