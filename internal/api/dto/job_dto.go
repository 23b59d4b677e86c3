package dto

type ListJobsRequest struct {
	ChannelID string `form:"channel_id"`
	Status    string `form:"status"`
	PageSize  int    `form:"page_size"`
	Cursor    string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID        string `json:"job_id"`
	FileID       string `json:"file_id"`
	OriginalName string `json:"original_name"`
	TargetName   string `json:"target_name"`
	ChannelID    string `json:"channel_id"`
	ChannelName  string `json:"channel_name,omitempty"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	EnqueuedAt   string `json:"enqueued_at"`
	StartedAt    string `json:"started_at,omitempty"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

// QueueStatusResponse describes the live pipeline
type QueueStatusResponse struct {
	State         string   `json:"state"`
	Busy          bool     `json:"busy"`
	QueueLength   int      `json:"queue_length"`
	Current       *JobDTO  `json:"current,omitempty"`
	Queued        []JobDTO `json:"queued"`
	Completed     int      `json:"completed"`
	Failed        int      `json:"failed"`
	LastDrainedAt string   `json:"last_drained_at,omitempty"`
}
