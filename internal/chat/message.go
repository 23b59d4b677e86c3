package chat

import "time"

const (
	MessageTypeReply = "reply"
	MessageTypeFile  = "file"
)

// Message is published to the outbound exchange for the chat service to deliver
type Message struct {
	Type      string      `json:"type"`
	ChannelID string      `json:"channel_id"`
	Text      string      `json:"text,omitempty"`
	File      *FileNotice `json:"file,omitempty"`
	SentAt    time.Time   `json:"sent_at"`
}

// FileNotice describes an uploaded file
type FileNotice struct {
	Name      string `json:"name"`
	ObjectKey string `json:"object_key"`
	Size      int64  `json:"size"`
	URL       string `json:"url,omitempty"`
}
