package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrResolution is returned when a fetch URL cannot be obtained for a file handle
	ErrResolution = errors.New("cannot resolve file url")

	// ErrDownload is returned on transport failure, timeout or a zero-byte download
	ErrDownload = errors.New("download failed")

	// ErrTranscode is returned when the transcode engine reports failure
	ErrTranscode = errors.New("transcode failed")

	// ErrUpload is returned when the chat sink rejects the artifact or the transport fails
	ErrUpload = errors.New("upload failed")

	// ErrDirectory is returned when a scratch directory cannot be created or removed
	ErrDirectory = errors.New("scratch directory operation failed")

	// ErrInvalidEvent is returned when an inbound event cannot be decoded
	ErrInvalidEvent = errors.New("invalid file event")

	// ErrJobNotFound is returned when a job history record does not exist
	ErrJobNotFound = errors.New("job not found")

	// ErrEmptyFile is returned by the download stage when zero bytes were written
	ErrEmptyFile = errors.New("downloaded file is empty")
)

// StageError records which pipeline stage failed for which file
type StageError struct {
	Stage    string
	FileName string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.FileName, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the failed stage
func (e *StageError) Is(target error) bool {
	return target == stageSentinel(e.Stage)
}

// NewStageError wraps err as a failure of the given stage
func NewStageError(stage, fileName string, err error) error {
	return &StageError{Stage: stage, FileName: fileName, Err: err}
}

func stageSentinel(stage string) error {
	switch stage {
	case StageResolve:
		return ErrResolution
	case StageDownload:
		return ErrDownload
	case StageTranscode:
		return ErrTranscode
	case StageUpload:
		return ErrUpload
	default:
		return nil
	}
}
