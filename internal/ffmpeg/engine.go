// Package ffmpeg runs the external ffmpeg binary as the transcode engine.
package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/chat-transcoder/internal/worker/domain"
)

const maxDiagnosticLen = 1024

// Config holds engine settings
type Config struct {
	FFmpegPath  string
	FFprobePath string
	Threads     int
	ExtraArgs   []string
}

// Engine transcodes a file with ffmpeg and reports progress parsed from -progress output
type Engine struct {
	ffmpegPath  string
	ffprobePath string
	threads     int
	extraArgs   []string
	logger      *slog.Logger
}

// NewEngine creates an engine with defaults for empty settings
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	ffmpegPath := cfg.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	ffprobePath := cfg.FFprobePath
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = 4
	}

	return &Engine{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     threads,
		extraArgs:   cfg.ExtraArgs,
		logger:      logger,
	}
}

// Args returns the ffmpeg argument list for a transcode
func (e *Engine) Args(inputPath, outputPath string) []string {
	args := []string{
		"-y",
		"-threads", strconv.Itoa(e.threads),
		"-i", inputPath,
	}
	args = append(args, e.extraArgs...)
	args = append(args,
		"-progress", "pipe:1",
		"-nostats",
		outputPath,
	)
	return args
}

// Run transcodes inputPath into outputPath. A failed run returns an error
// carrying the tail of ffmpeg's stderr as diagnostic text.
func (e *Engine) Run(ctx context.Context, inputPath, outputPath string, onProgress func(domain.Progress)) error {
	duration, err := e.probeDuration(ctx, inputPath)
	if err != nil {
		e.logger.Warn("Duration probe failed, progress will be coarse",
			slog.String("input", inputPath),
			slog.String("error", err.Error()),
		)
		duration = 0
	}

	cmd := exec.CommandContext(ctx, e.ffmpegPath, e.Args(inputPath, outputPath)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}

	var (
		wg        sync.WaitGroup
		stderrBuf strings.Builder
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		tracker := NewProgressTracker(duration)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if progress, ok := tracker.Parse(scanner.Text()); ok && onProgress != nil {
				onProgress(progress)
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			stderrBuf.WriteString(scanner.Text())
			stderrBuf.WriteByte('\n')
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		return fmt.Errorf("ffmpeg execution: %w - %s", err, diagnostic(stderrBuf.String()))
	}

	return nil
}

func (e *Engine) probeDuration(ctx context.Context, input string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		input,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	return ParseDuration(string(output))
}

// ParseDuration parses ffprobe's seconds output
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "N/A" {
		return 0, errors.New("empty duration")
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// diagnostic keeps the last lines of stderr, where ffmpeg prints the actual failure
func diagnostic(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if len(stderr) > maxDiagnosticLen {
		stderr = stderr[len(stderr)-maxDiagnosticLen:]
	}
	return stderr
}
