package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/chat-transcoder/internal/worker/domain"
	"github.com/google/uuid"
)

// IngressConfig holds ingress handler dependencies
type IngressConfig struct {
	Logger    *slog.Logger
	Pipeline  *Pipeline
	Replier   Replier
	Store     MediaStore
	SourceExt string
	TargetExt string
}

// Ingress turns qualifying file-transfer events into queued jobs
type Ingress struct {
	logger    *slog.Logger
	pipeline  *Pipeline
	replier   Replier
	store     MediaStore
	sourceExt string
	targetExt string
}

// NewIngress creates an ingress handler
func NewIngress(cfg *IngressConfig) *Ingress {
	return &Ingress{
		logger:    cfg.Logger,
		pipeline:  cfg.Pipeline,
		replier:   cfg.Replier,
		store:     cfg.Store,
		sourceExt: cfg.SourceExt,
		targetExt: cfg.TargetExt,
	}
}

// HandleFileEvent enqueues the attached file when the event comes from a group
// channel and the file name ends with the source suffix. Anything else is
// ignored without a reply. Failures are logged and never returned.
func (i *Ingress) HandleFileEvent(ctx context.Context, event *domain.FileEvent) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("Recovered panic while enqueuing file event",
				slog.Any("panic", r),
			)
		}
	}()

	if !i.accepts(event) {
		return
	}

	job := i.buildJob(event)

	// the acknowledgement goes out before the drain loop can reply about this job
	i.pipeline.submit(ctx, job, func(length int) {
		text := fmt.Sprintf("File [%s] queued for transcoding, queue length %d", job.OriginalName, length)
		if err := i.replier.Reply(ctx, job.ChannelID, text); err != nil {
			i.logger.Error("Failed to send enqueue acknowledgement",
				slog.String("job_id", job.ID),
				slog.String("channel_id", job.ChannelID),
				slog.String("error", err.Error()),
			)
		}
	})
}

func (i *Ingress) accepts(event *domain.FileEvent) bool {
	if event == nil || event.Scope != domain.ScopeGroup || event.File == nil {
		return false
	}
	if event.ChannelID == "" || event.File.FileID == "" {
		return false
	}
	if !domain.ValidFileID(event.File.FileID) {
		i.logger.Warn("Ignoring file event with unsafe file handle",
			slog.String("file_id", event.File.FileID),
			slog.String("channel_id", event.ChannelID),
		)
		return false
	}
	return strings.HasSuffix(event.File.Name, i.sourceExt)
}

func (i *Ingress) buildJob(event *domain.FileEvent) *domain.Job {
	fileID := event.File.FileID
	name := event.File.Name

	return &domain.Job{
		ID:           uuid.NewString(),
		FileID:       fileID,
		OriginalName: name,
		TargetName:   domain.TargetName(name, i.sourceExt, i.targetExt),
		ChannelID:    event.ChannelID,
		ChannelName:  event.ChannelName,
		InputPath:    i.store.InputPath(fileID),
		OutputPath:   i.store.OutputPath(fileID),
		EnqueuedAt:   time.Now(),
	}
}
