package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/chat-transcoder/internal/worker/domain"
)

// Replier sends text replies to a chat channel
type Replier interface {
	Reply(ctx context.Context, channelID, text string) error
}

// Gateway is the chat transfer boundary: URL resolution, download, upload and replies.
// Upload must not send on progress after it returns.
type Gateway interface {
	Replier
	ResolveURL(ctx context.Context, fileID string) (string, error)
	Download(ctx context.Context, url, dest string) (int64, error)
	Upload(ctx context.Context, req domain.UploadRequest, progress chan<- domain.Progress) error
}

// Engine transcodes inputPath into outputPath
type Engine interface {
	Run(ctx context.Context, inputPath, outputPath string, onProgress func(domain.Progress)) error
}

// MediaStore owns the scratch directories
type MediaStore interface {
	EnsureDirs() error
	EvictAll() error
	InputPath(fileID string) string
	OutputPath(fileID string) string
}

// Recorder persists job history. Failures are logged and never affect the pipeline.
type Recorder interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	UpdateJobStatus(ctx context.Context, job *domain.Job) error
}

// PipelineConfig holds pipeline dependencies and stage timeouts
type PipelineConfig struct {
	Logger           *slog.Logger
	Gateway          Gateway
	Engine           Engine
	Store            MediaStore
	Recorder         Recorder
	UploadDir        string
	ResolveTimeout   time.Duration
	DownloadTimeout  time.Duration
	TranscodeTimeout time.Duration
	UploadTimeout    time.Duration
}

// Snapshot is a point-in-time view of the pipeline
type Snapshot struct {
	State         domain.State
	Busy          bool
	QueueLength   int
	Current       *domain.Job
	Queued        []domain.Job
	Completed     int
	Failed        int
	LastDrainedAt time.Time
}

// Pipeline processes queued jobs one at a time.
// The busy flag and the queue are guarded by mu; at most one drain goroutine runs.
type Pipeline struct {
	logger   *slog.Logger
	gateway  Gateway
	engine   Engine
	store    MediaStore
	recorder Recorder

	uploadDir        string
	resolveTimeout   time.Duration
	downloadTimeout  time.Duration
	transcodeTimeout time.Duration
	uploadTimeout    time.Duration

	mu            sync.Mutex
	queue         *Queue
	busy          bool
	state         domain.State
	current       *domain.Job
	completed     int
	failed        int
	lastDrainedAt time.Time

	// held for reading while an enqueue acknowledgement is sent; a popped job waits for it
	acks sync.RWMutex

	wg sync.WaitGroup
}

// NewPipeline creates an idle pipeline with an empty queue
func NewPipeline(cfg *PipelineConfig) *Pipeline {
	uploadDir := cfg.UploadDir
	if uploadDir == "" {
		uploadDir = "/"
	}

	return &Pipeline{
		logger:           cfg.Logger,
		gateway:          cfg.Gateway,
		engine:           cfg.Engine,
		store:            cfg.Store,
		recorder:         cfg.Recorder,
		uploadDir:        uploadDir,
		resolveTimeout:   cfg.ResolveTimeout,
		downloadTimeout:  cfg.DownloadTimeout,
		transcodeTimeout: cfg.TranscodeTimeout,
		uploadTimeout:    cfg.UploadTimeout,
		queue:            NewQueue(),
		state:            domain.StateIdle,
	}
}

// Submit appends job to the queue tail and starts the drain loop if the pipeline is idle.
// It returns the queue length after the append.
func (p *Pipeline) Submit(ctx context.Context, job *domain.Job) int {
	return p.submit(ctx, job, nil)
}

// submit enqueues job and calls onQueued, if set, before the drain loop starts
func (p *Pipeline) submit(ctx context.Context, job *domain.Job, onQueued func(length int)) int {
	job.Status = domain.JobStatusQueued
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	p.recordCreate(ctx, job)

	p.acks.RLock()
	defer p.acks.RUnlock()

	p.mu.Lock()
	p.queue.Append(job)
	length := p.queue.Len()
	start := !p.busy
	if start {
		p.busy = true
		p.wg.Add(1)
	}
	p.mu.Unlock()

	p.logger.Info("Job enqueued",
		slog.String("job_id", job.ID),
		slog.String("file_id", job.FileID),
		slog.String("file_name", job.OriginalName),
		slog.String("channel_id", job.ChannelID),
		slog.Int("queue_length", length),
	)

	if start {
		// deferred so a panicking onQueued cannot leave the pipeline busy with no drain loop;
		// jobs are never cancelled once popped
		defer func() { go p.drain(context.WithoutCancel(ctx)) }()
	}

	if onQueued != nil {
		onQueued(length)
	}

	return length
}

// Wait blocks until the drain loop, if any, has returned to idle
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Status returns a snapshot of the pipeline state
func (p *Pipeline) Status() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		State:         p.state,
		Busy:          p.busy,
		QueueLength:   p.queue.Len(),
		Queued:        p.queue.Snapshot(),
		Completed:     p.completed,
		Failed:        p.failed,
		LastDrainedAt: p.lastDrainedAt,
	}
	if p.current != nil {
		current := *p.current
		snap.Current = &current
	}
	return snap
}

// drain pops and processes jobs until the queue is empty, then evicts the
// scratch directories and returns the pipeline to idle. The busy flag stays
// set during eviction so no job can start while directories are being wiped.
func (p *Pipeline) drain(ctx context.Context) {
	defer p.wg.Done()

	if err := p.store.EnsureDirs(); err != nil {
		p.logger.Error("Failed to initialize scratch directories",
			slog.String("error", err.Error()),
		)
	}

	p.logger.Info("Queue processing started",
		slog.Int("queue_length", p.Status().QueueLength),
	)

	for {
		job, ok := p.next()
		if ok {
			p.awaitAcks()
			p.process(ctx, job)
			continue
		}

		p.evict()

		p.mu.Lock()
		if p.queue.Len() > 0 {
			p.mu.Unlock()
			continue
		}
		p.busy = false
		p.state = domain.StateIdle
		p.lastDrainedAt = time.Now()
		p.mu.Unlock()

		p.logger.Info("Transcode queue drained")
		return
	}
}

// next pops the queue head and moves the pipeline to Resolving
func (p *Pipeline) next() (*domain.Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	job, ok := p.queue.PopFront()
	if !ok {
		p.current = nil
		p.state = domain.StateDraining
		return nil, false
	}

	current := *job
	p.current = &current
	p.state = domain.StateResolving
	return job, true
}

// process drives one job to a terminal outcome and always ends in Draining
func (p *Pipeline) process(ctx context.Context, job *domain.Job) {
	p.logger.Info("Processing job",
		slog.String("job_id", job.ID),
		slog.String("file_name", job.OriginalName),
		slog.Int("remaining", p.Status().QueueLength),
	)

	job.Status = domain.JobStatusRunning
	job.StartedAt = time.Now()
	p.recordUpdate(ctx, job)

	err := p.runStages(ctx, job)

	job.FinishedAt = time.Now()
	if err != nil {
		job.Status = domain.JobStatusFailed
		job.Error = err.Error()
		p.logger.Error("Job failed",
			slog.String("job_id", job.ID),
			slog.String("file_name", job.OriginalName),
			slog.String("error", err.Error()),
		)
	} else {
		job.Status = domain.JobStatusCompleted
		p.logger.Info("Job completed successfully",
			slog.String("job_id", job.ID),
			slog.String("file_name", job.OriginalName),
			slog.Duration("elapsed", job.FinishedAt.Sub(job.StartedAt)),
		)
	}
	p.recordUpdate(ctx, job)

	p.mu.Lock()
	if err != nil {
		p.failed++
	} else {
		p.completed++
	}
	p.current = nil
	p.state = domain.StateDraining
	p.mu.Unlock()
}

// awaitAcks blocks until every enqueue acknowledgement already being sent has gone out
func (p *Pipeline) awaitAcks() {
	p.acks.Lock()
	defer p.acks.Unlock()
}

func (p *Pipeline) evict() {
	if err := p.store.EvictAll(); err != nil {
		p.logger.Error("Failed to evict scratch directories",
			slog.String("error", err.Error()),
		)
	}
}

// advance publishes a copy of job as the current job; Status never reads the live pointer
func (p *Pipeline) advance(job *domain.Job, state domain.State) {
	current := *job
	p.mu.Lock()
	p.current = &current
	p.state = state
	p.mu.Unlock()
}

func (p *Pipeline) recordCreate(ctx context.Context, job *domain.Job) {
	if p.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	if err := p.recorder.CreateJob(ctx, job); err != nil {
		p.logger.Warn("Failed to record job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pipeline) recordUpdate(ctx context.Context, job *domain.Job) {
	if p.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	if err := p.recorder.UpdateJobStatus(ctx, job); err != nil {
		p.logger.Warn("Failed to update job record",
			slog.String("job_id", job.ID),
			slog.String("status", job.Status),
			slog.String("error", err.Error()),
		)
	}
}
