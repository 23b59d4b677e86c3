// Package mediastore manages the inbound and outbound scratch directories
// used while a job is downloaded, transcoded and uploaded.
package mediastore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cuongbtq/chat-transcoder/internal/worker/domain"
)

const dirPerm = 0o755

// Config holds scratch directory configuration
type Config struct {
	InboundDir  string
	OutboundDir string
	SourceExt   string
	TargetExt   string
}

// Store owns the two scratch directories
type Store struct {
	inboundDir  string
	outboundDir string
	sourceExt   string
	targetExt   string
	logger      *slog.Logger

	mu          sync.Mutex
	initialized bool
}

// New creates a Store. Directories are not touched until EnsureDirs.
func New(cfg Config, logger *slog.Logger) *Store {
	return &Store{
		inboundDir:  cfg.InboundDir,
		outboundDir: cfg.OutboundDir,
		sourceExt:   cfg.SourceExt,
		targetExt:   cfg.TargetExt,
		logger:      logger,
	}
}

// EnsureDirs creates both scratch directories once; later calls are no-ops
func (s *Store) EnsureDirs() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	s.logger.Info("Initializing scratch directories",
		slog.String("inbound_dir", s.inboundDir),
		slog.String("outbound_dir", s.outboundDir),
	)

	if err := s.mkdirs(); err != nil {
		return err
	}

	s.initialized = true
	return nil
}

// EvictAll removes both directories recursively and recreates them empty
func (s *Store) EvictAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("Evicting scratch directories",
		slog.String("inbound_dir", s.inboundDir),
		slog.String("outbound_dir", s.outboundDir),
	)

	for _, dir := range []string{s.inboundDir, s.outboundDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("%w: remove %s: %v", domain.ErrDirectory, dir, err)
		}
	}

	if err := s.mkdirs(); err != nil {
		return err
	}

	s.initialized = true
	return nil
}

// InputPath returns the inbound scratch path for a file handle.
// Only the last element of the handle is used, so the path never leaves the directory.
func (s *Store) InputPath(fileID string) string {
	return filepath.Join(s.inboundDir, filepath.Base(fileID)+s.sourceExt)
}

// OutputPath returns the outbound scratch path for a file handle
func (s *Store) OutputPath(fileID string) string {
	return filepath.Join(s.outboundDir, filepath.Base(fileID)+s.targetExt)
}

func (s *Store) mkdirs() error {
	for _, dir := range []string{s.inboundDir, s.outboundDir} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("%w: create %s: %v", domain.ErrDirectory, dir, err)
		}
	}
	return nil
}
