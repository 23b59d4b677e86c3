package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/chat-transcoder/internal/worker/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	presignErr error
	putErr     error
	chunk      int

	mu      sync.Mutex
	puts    []string
	expiry  time.Duration
	content string
}

func (f *fakeStore) PresignInbound(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	f.mu.Lock()
	f.expiry = expiry
	f.mu.Unlock()
	return "http://objects.local/inbound/" + objectName, nil
}

func (f *fakeStore) PutOutbound(ctx context.Context, objectName, filePath, contentType string, progress io.Reader) (int64, error) {
	if f.putErr != nil {
		return 0, f.putErr
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, err
	}

	for off := 0; off < len(data); off += f.chunk {
		end := min(off+f.chunk, len(data))
		if _, err := progress.Read(data[off:end]); err != nil {
			return 0, err
		}
	}

	f.mu.Lock()
	f.puts = append(f.puts, objectName)
	f.content = contentType
	f.mu.Unlock()
	return int64(len(data)), nil
}

func (f *fakeStore) PresignOutbound(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	return "http://objects.local/outbound/" + objectName, nil
}

type fakePublisher struct {
	err error

	mu     sync.Mutex
	bodies [][]byte
}

func (f *fakePublisher) PublishWithRetry(ctx context.Context, body []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) messages(t *testing.T) []Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Message, len(f.bodies))
	for i, body := range f.bodies {
		require.NoError(t, json.Unmarshal(body, &out[i]))
	}
	return out
}

func newTestGateway(store *fakeStore, pub *fakePublisher) *Gateway {
	return NewGateway(&Config{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:         store,
		Publisher:     pub,
		PresignExpiry: time.Minute,
	})
}

func TestGateway_ResolveURL(t *testing.T) {
	store := &fakeStore{}
	g := newTestGateway(store, &fakePublisher{})

	url, err := g.ResolveURL(context.Background(), "file-1")
	require.NoError(t, err)
	assert.Equal(t, "http://objects.local/inbound/file-1", url)
	assert.Equal(t, time.Minute, store.expiry)

	store.presignErr = errors.New("object does not exist")
	_, err = g.ResolveURL(context.Background(), "file-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file-2")
}

func TestGateway_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte("webm-bytes"))
		case "/empty":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g := newTestGateway(&fakeStore{}, &fakePublisher{})
	dir := t.TempDir()

	t.Run("writes body", func(t *testing.T) {
		dest := filepath.Join(dir, "inbound", "file-1.webm")

		written, err := g.Download(context.Background(), srv.URL+"/ok", dest)
		require.NoError(t, err)
		assert.Equal(t, int64(10), written)

		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "webm-bytes", string(data))
	})

	t.Run("empty body reports zero bytes", func(t *testing.T) {
		written, err := g.Download(context.Background(), srv.URL+"/empty", filepath.Join(dir, "empty.webm"))
		require.NoError(t, err)
		assert.Zero(t, written)
	})

	t.Run("non-2xx status fails", func(t *testing.T) {
		dest := filepath.Join(dir, "missing.webm")

		_, err := g.Download(context.Background(), srv.URL+"/missing", dest)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
		assert.NoFileExists(t, dest)
	})
}

func TestGateway_Upload(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "file-1.mp4")
	require.NoError(t, os.WriteFile(artifact, make([]byte, 400), 0o644))

	store := &fakeStore{chunk: 100}
	pub := &fakePublisher{}
	g := newTestGateway(store, pub)

	progress := make(chan domain.Progress, 16)
	err := g.Upload(context.Background(), domain.UploadRequest{
		ChannelID: "channel-1",
		Path:      artifact,
		DestDir:   "/",
		DestName:  "a.mp4",
	}, progress)
	require.NoError(t, err)
	close(progress)

	var percents []float64
	for p := range progress {
		percents = append(percents, p.Percent)
	}
	assert.Equal(t, []float64{25, 50, 75, 100}, percents)

	assert.Equal(t, []string{"channel-1/a.mp4"}, store.puts)
	assert.Equal(t, "video/mp4", store.content)

	msgs := pub.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, MessageTypeFile, msgs[0].Type)
	assert.Equal(t, "channel-1", msgs[0].ChannelID)
	require.NotNil(t, msgs[0].File)
	assert.Equal(t, "a.mp4", msgs[0].File.Name)
	assert.Equal(t, int64(400), msgs[0].File.Size)
	assert.Equal(t, "http://objects.local/outbound/channel-1/a.mp4", msgs[0].File.URL)
}

func TestGateway_UploadFailure(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "file-1.mp4")
	require.NoError(t, os.WriteFile(artifact, []byte("mp4"), 0o644))

	store := &fakeStore{chunk: 1, putErr: errors.New("bucket unavailable")}
	pub := &fakePublisher{}
	g := newTestGateway(store, pub)

	err := g.Upload(context.Background(), domain.UploadRequest{
		ChannelID: "channel-1",
		Path:      artifact,
		DestName:  "a.mp4",
	}, make(chan domain.Progress, 1))
	require.Error(t, err)
	assert.Empty(t, pub.messages(t))

	err = g.Upload(context.Background(), domain.UploadRequest{Path: filepath.Join(t.TempDir(), "missing.mp4")}, nil)
	require.Error(t, err)
}

func TestGateway_Reply(t *testing.T) {
	pub := &fakePublisher{}
	g := newTestGateway(&fakeStore{}, pub)

	require.NoError(t, g.Reply(context.Background(), "channel-1", "File [a.webm] queued for transcoding, queue length 1"))

	msgs := pub.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, MessageTypeReply, msgs[0].Type)
	assert.Equal(t, "channel-1", msgs[0].ChannelID)
	assert.Equal(t, "File [a.webm] queued for transcoding, queue length 1", msgs[0].Text)
	assert.Nil(t, msgs[0].File)

	pub.err = errors.New("channel closed")
	err := g.Reply(context.Background(), "channel-1", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish reply message")
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		dir, channel, name string
		want               string
	}{
		{"/", "channel-1", "a.mp4", "channel-1/a.mp4"},
		{"", "channel-1", "a.mp4", "channel-1/a.mp4"},
		{"/media/", "channel-1", "a.mp4", "media/channel-1/a.mp4"},
		{"media", "c", "b.mp4", "media/c/b.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectKey(tt.dir, tt.channel, tt.name))
		})
	}
}
