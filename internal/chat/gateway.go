package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuongbtq/chat-transcoder/internal/worker/domain"
)

const jsonContentType = "application/json"

var videoContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
}

// ObjectStore is the storage side of file transfer
type ObjectStore interface {
	PresignInbound(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	PutOutbound(ctx context.Context, objectName, filePath, contentType string, progress io.Reader) (int64, error)
	PresignOutbound(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// Publisher delivers outbound chat messages
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Config holds gateway dependencies
type Config struct {
	Logger        *slog.Logger
	Store         ObjectStore
	Publisher     Publisher
	HTTPClient    *http.Client
	PresignExpiry time.Duration
}

// Gateway moves files between the chat service and the local scratch directories
// and posts messages back to chat channels
type Gateway struct {
	logger        *slog.Logger
	store         ObjectStore
	publisher     Publisher
	httpClient    *http.Client
	presignExpiry time.Duration
}

// NewGateway creates a transfer gateway
func NewGateway(cfg *Config) *Gateway {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	return &Gateway{
		logger:        cfg.Logger,
		store:         cfg.Store,
		publisher:     cfg.Publisher,
		httpClient:    client,
		presignExpiry: expiry,
	}
}

// ResolveURL returns a short-lived download URL for a chat file
func (g *Gateway) ResolveURL(ctx context.Context, fileID string) (string, error) {
	url, err := g.store.PresignInbound(ctx, fileID, g.presignExpiry)
	if err != nil {
		return "", fmt.Errorf("resolve file %s: %w", fileID, err)
	}
	return url, nil
}

// Download writes the body at url to dest and returns the number of bytes written.
// A partial file is removed on failure.
func (g *Gateway) Download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build download request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("download request: unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrDirectory, err)
	}

	file, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dest, err)
	}

	written, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(dest)
		return written, fmt.Errorf("write %s: %w", dest, err)
	}

	return written, nil
}

// Upload stores the transcoded artifact under <dest_dir>/<channel_id>/<dest_name>
// and announces it to the channel. Progress is reported synchronously, so
// nothing is sent on progress after Upload returns.
func (g *Gateway) Upload(ctx context.Context, req domain.UploadRequest, progress chan<- domain.Progress) error {
	info, err := os.Stat(req.Path)
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}

	key := ObjectKey(req.DestDir, req.ChannelID, req.DestName)
	contentType := contentTypeFor(req.DestName)

	reporter := newProgressReader(ctx, info.Size(), progress)
	size, err := g.store.PutOutbound(ctx, key, req.Path, contentType, reporter)
	if err != nil {
		return err
	}
	reporter.finish()

	link, err := g.store.PresignOutbound(ctx, key, g.presignExpiry)
	if err != nil {
		g.logger.Warn("Failed to presign uploaded artifact",
			slog.String("object_key", key),
			slog.String("error", err.Error()),
		)
	}

	return g.publish(ctx, Message{
		Type:      MessageTypeFile,
		ChannelID: req.ChannelID,
		File: &FileNotice{
			Name:      req.DestName,
			ObjectKey: key,
			Size:      size,
			URL:       link,
		},
	})
}

// Reply posts a text message to a channel
func (g *Gateway) Reply(ctx context.Context, channelID, text string) error {
	return g.publish(ctx, Message{
		Type:      MessageTypeReply,
		ChannelID: channelID,
		Text:      text,
	})
}

func (g *Gateway) publish(ctx context.Context, msg Message) error {
	msg.SentAt = time.Now().UTC()

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Type, err)
	}

	if err := g.publisher.PublishWithRetry(ctx, body, jsonContentType); err != nil {
		return fmt.Errorf("publish %s message: %w", msg.Type, err)
	}
	return nil
}

func contentTypeFor(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := videoContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ObjectKey builds the outbound object name; a leading slash in dir is dropped
func ObjectKey(dir, channelID, name string) string {
	return strings.TrimPrefix(path.Join("/", dir, channelID, name), "/")
}
