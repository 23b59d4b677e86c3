package domain

import (
	"strings"
	"time"
)

// Job represents one requested transcode, tracked from enqueue to terminal outcome
type Job struct {
	ID           string
	FileID       string
	OriginalName string
	TargetName   string
	ChannelID    string
	ChannelName  string
	InputPath    string
	OutputPath   string
	SourceURL    string // resolved only once the job is popped
	Status       string
	Error        string
	EnqueuedAt   time.Time
	StartedAt    time.Time
	FinishedAt   time.Time
}

// FileEvent is a chat message event as published by the chat gateway
type FileEvent struct {
	Scope       string    `json:"scope"`
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name,omitempty"`
	SenderID    string    `json:"sender_id,omitempty"`
	File        *FileInfo `json:"file,omitempty"`
}

// FileInfo is the file attached to a FileEvent
type FileInfo struct {
	FileID string `json:"file_id"`
	Name   string `json:"name"`
	Size   int64  `json:"size,omitempty"`
}

// UploadRequest describes an artifact to push back to a chat channel
type UploadRequest struct {
	ChannelID string
	Path      string
	DestDir   string
	DestName  string
}

// Progress is a percentage report emitted by the transcode engine or upload transport
type Progress struct {
	Percent   float64
	Processed time.Duration
}

// TargetName replaces the trailing source suffix of name with the target suffix
func TargetName(name, sourceExt, targetExt string) string {
	return strings.TrimSuffix(name, sourceExt) + targetExt
}

// ValidFileID reports whether a chat file handle can name a scratch file.
// Handles are used as file names, so separators and parent references are refused.
func ValidFileID(fileID string) bool {
	if fileID == "" || strings.ContainsAny(fileID, "/\\\x00") {
		return false
	}
	return !strings.Contains(fileID, "..")
}
