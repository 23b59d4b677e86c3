package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/chat-transcoder/internal/worker/domain"
)

const (
	recordTimeout = 5 * time.Second
	replyTimeout  = 10 * time.Second
)

// runStages executes resolve, download, transcode and upload in order.
// A panic outside a stage call is converted into an error so the drain loop keeps advancing.
func (p *Pipeline) runStages(ctx context.Context, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Recovered panic in pipeline stage",
				slog.String("job_id", job.ID),
				slog.Any("panic", r),
			)
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	if err := p.resolve(ctx, job); err != nil {
		return err
	}
	if err := p.download(ctx, job); err != nil {
		return err
	}
	if err := p.transcode(ctx, job); err != nil {
		return err
	}
	return p.upload(ctx, job)
}

// resolve obtains the source URL right before download; it is never cached across a wait
func (p *Pipeline) resolve(ctx context.Context, job *domain.Job) error {
	p.advance(job, domain.StateResolving)

	url, err := timeStage(ctx, p.logger, domain.StageResolve, job.OriginalName, p.resolveTimeout,
		func(ctx context.Context) (string, error) {
			return p.gateway.ResolveURL(ctx, job.FileID)
		})
	if err != nil {
		p.reply(ctx, job, fmt.Sprintf("Failed to resolve download link for [%s]: %v", job.OriginalName, err))
		return domain.NewStageError(domain.StageResolve, job.OriginalName, err)
	}

	job.SourceURL = url
	return nil
}

func (p *Pipeline) download(ctx context.Context, job *domain.Job) error {
	p.advance(job, domain.StateDownloading)

	written, err := timeStage(ctx, p.logger, domain.StageDownload, job.OriginalName, p.downloadTimeout,
		func(ctx context.Context) (int64, error) {
			return p.gateway.Download(ctx, job.SourceURL, job.InputPath)
		})
	if err == nil && written == 0 {
		err = domain.ErrEmptyFile
	}
	if err != nil {
		p.reply(ctx, job, fmt.Sprintf("Failed to download video file: %s", job.OriginalName))
		return domain.NewStageError(domain.StageDownload, job.OriginalName, err)
	}

	p.logger.Debug("Source downloaded",
		slog.String("file_name", job.OriginalName),
		slog.String("path", job.InputPath),
		slog.Int64("bytes", written),
	)
	return nil
}

func (p *Pipeline) transcode(ctx context.Context, job *domain.Job) error {
	p.advance(job, domain.StateTranscoding)

	onProgress := func(progress domain.Progress) {
		p.logger.Debug("Transcode progress",
			slog.String("file_name", job.OriginalName),
			slog.Float64("percent", progress.Percent),
			slog.Duration("processed", progress.Processed),
		)
	}

	_, err := timeStage(ctx, p.logger, domain.StageTranscode, job.OriginalName, p.transcodeTimeout,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.engine.Run(ctx, job.InputPath, job.OutputPath, onProgress)
		})
	if err != nil {
		p.reply(ctx, job, fmt.Sprintf("File [%s] transcode failed: %v", job.OriginalName, err))
		return domain.NewStageError(domain.StageTranscode, job.OriginalName, err)
	}
	return nil
}

// upload pushes the artifact back to the channel. Progress is consumed on its
// own goroutine; timing wraps only the awaited result.
func (p *Pipeline) upload(ctx context.Context, job *domain.Job) error {
	p.advance(job, domain.StateUploading)

	req := domain.UploadRequest{
		ChannelID: job.ChannelID,
		Path:      job.OutputPath,
		DestDir:   p.uploadDir,
		DestName:  job.TargetName,
	}

	progress := make(chan domain.Progress, 16)
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		p.watchUpload(job, progress, time.Now())
	}()

	_, err := timeStage(ctx, p.logger, domain.StageUpload, job.TargetName, p.uploadTimeout,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.gateway.Upload(ctx, req, progress)
		})
	close(progress)
	<-watched

	if err != nil {
		p.reply(ctx, job, fmt.Sprintf("Failed to upload [%s]: %v", job.TargetName, err))
		return domain.NewStageError(domain.StageUpload, job.TargetName, err)
	}
	return nil
}

// watchUpload logs once when the transport reports completion
func (p *Pipeline) watchUpload(job *domain.Job, progress <-chan domain.Progress, start time.Time) {
	logged := false
	for report := range progress {
		if logged || report.Percent < 100 {
			continue
		}
		logged = true
		p.logger.Info("Upload transferred",
			slog.String("file_name", job.TargetName),
			slog.Float64("percent", report.Percent),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}

// reply sends a user-facing message; failures are logged only
func (p *Pipeline) reply(ctx context.Context, job *domain.Job, text string) {
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	if err := p.gateway.Reply(ctx, job.ChannelID, text); err != nil {
		p.logger.Error("Failed to send reply",
			slog.String("job_id", job.ID),
			slog.String("channel_id", job.ChannelID),
			slog.String("error", err.Error()),
		)
	}
}

// timeStage runs fn with an optional timeout and logs the elapsed wall-clock time.
// A panic in fn is returned as an error.
func timeStage[T any](
	ctx context.Context,
	logger *slog.Logger,
	stage, fileName string,
	timeout time.Duration,
	fn func(context.Context) (T, error),
) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := callStage(ctx, fn)
	elapsed := time.Since(start)

	if err != nil {
		logger.Warn("Stage failed",
			slog.String("stage", stage),
			slog.String("file_name", fileName),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return result, err
	}

	logger.Info("Stage completed",
		slog.String("stage", stage),
		slog.String("file_name", fileName),
		slog.Duration("elapsed", elapsed),
	)
	return result, nil
}

func callStage[T any](ctx context.Context, fn func(context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
