package domain

// Job status constants
const (
	JobStatusQueued    = "QUEUED"
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED"
)

// Event scopes delivered by the chat gateway
const (
	ScopeGroup   = "group"
	ScopePrivate = "private"
)

// State is the pipeline worker state
type State string

const (
	StateIdle        State = "IDLE"
	StateResolving   State = "RESOLVING"
	StateDownloading State = "DOWNLOADING"
	StateTranscoding State = "TRANSCODING"
	StateUploading   State = "UPLOADING"
	StateDraining    State = "DRAINING"
)

// Stage names used in logs and errors
const (
	StageResolve   = "resolve"
	StageDownload  = "download"
	StageTranscode = "transcode"
	StageUpload    = "upload"
)
