package worker

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/chat-transcoder/internal/worker/domain"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentReply struct {
	ChannelID string
	Text      string
}

// fakeGateway records every call. URLs are "url://<fileID>", so download and
// upload failures can be keyed by file ID.
type fakeGateway struct {
	resolveErr  map[string]error
	downloadErr map[string]error
	emptyFile   map[string]bool
	uploadErr   map[string]error
	// hanging calls wait for the context to end
	hangDownload map[string]bool
	hangUpload   map[string]bool
	replyErr     error
	replyDelay   time.Duration

	// block holds ResolveURL for blockFileID until released; entered is closed on arrival
	blockFileID string
	block       chan struct{}
	entered     chan struct{}

	mu        sync.Mutex
	active    int
	maxActive int
	calls     []string
	replies   []sentReply
	uploads   []domain.UploadRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		resolveErr:   map[string]error{},
		downloadErr:  map[string]error{},
		emptyFile:    map[string]bool{},
		uploadErr:    map[string]error{},
		hangDownload: map[string]bool{},
		hangUpload:   map[string]bool{},
	}
}

func (g *fakeGateway) enter(call string) {
	g.mu.Lock()
	g.active++
	if g.active > g.maxActive {
		g.maxActive = g.active
	}
	g.calls = append(g.calls, call)
	g.mu.Unlock()
}

func (g *fakeGateway) leave() {
	// give an overlapping job a chance to show up in maxActive
	time.Sleep(time.Millisecond)
	g.mu.Lock()
	g.active--
	g.mu.Unlock()
}

func (g *fakeGateway) ResolveURL(ctx context.Context, fileID string) (string, error) {
	g.enter("resolve:" + fileID)
	defer g.leave()

	if fileID == g.blockFileID && g.block != nil {
		close(g.entered)
		<-g.block
	}
	if err := g.resolveErr[fileID]; err != nil {
		return "", err
	}
	return "url://" + fileID, nil
}

func (g *fakeGateway) Download(ctx context.Context, url, dest string) (int64, error) {
	fileID := strings.TrimPrefix(url, "url://")
	g.enter("download:" + fileID)
	defer g.leave()

	if g.hangDownload[fileID] {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err := g.downloadErr[fileID]; err != nil {
		return 0, err
	}
	if g.emptyFile[fileID] {
		return 0, nil
	}
	return 1024, nil
}

func (g *fakeGateway) Upload(ctx context.Context, req domain.UploadRequest, progress chan<- domain.Progress) error {
	fileID := strings.TrimSuffix(filepath.Base(req.Path), filepath.Ext(req.Path))
	g.enter("upload:" + fileID)
	defer g.leave()

	if g.hangUpload[fileID] {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := g.uploadErr[fileID]; err != nil {
		return err
	}

	progress <- domain.Progress{Percent: 50}
	progress <- domain.Progress{Percent: 100}

	g.mu.Lock()
	g.uploads = append(g.uploads, req)
	g.mu.Unlock()
	return nil
}

func (g *fakeGateway) Reply(ctx context.Context, channelID, text string) error {
	g.mu.Lock()
	delay := g.replyDelay
	g.mu.Unlock()
	time.Sleep(delay)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.replies = append(g.replies, sentReply{ChannelID: channelID, Text: text})
	return g.replyErr
}

func (g *fakeGateway) sentReplies() []sentReply {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentReply(nil), g.replies...)
}

func (g *fakeGateway) uploaded() []domain.UploadRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.UploadRequest(nil), g.uploads...)
}

func (g *fakeGateway) callsWithPrefix(prefix string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []string
	for _, call := range g.calls {
		if strings.HasPrefix(call, prefix) {
			out = append(out, strings.TrimPrefix(call, prefix))
		}
	}
	return out
}

// fakeEngine fails or panics for configured input files
type fakeEngine struct {
	fail  map[string]error
	panic map[string]string

	mu   sync.Mutex
	runs []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{fail: map[string]error{}, panic: map[string]string{}}
}

func (e *fakeEngine) Run(ctx context.Context, inputPath, outputPath string, onProgress func(domain.Progress)) error {
	fileID := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))

	e.mu.Lock()
	e.runs = append(e.runs, fileID)
	e.mu.Unlock()

	if msg, ok := e.panic[fileID]; ok {
		panic(msg)
	}
	if err := e.fail[fileID]; err != nil {
		return err
	}

	onProgress(domain.Progress{Percent: 50})
	onProgress(domain.Progress{Percent: 100})
	return nil
}

func (e *fakeEngine) ran() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.runs...)
}

// fakeStore counts directory operations; onEvict runs once, after the first eviction
type fakeStore struct {
	onEvict func()

	mu        sync.Mutex
	ensured   int
	evictions int
}

func (s *fakeStore) EnsureDirs() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensured++
	return nil
}

func (s *fakeStore) EvictAll() error {
	s.mu.Lock()
	s.evictions++
	hook := s.onEvict
	s.onEvict = nil
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (s *fakeStore) InputPath(fileID string) string {
	return filepath.Join("/scratch/inbound", fileID+".webm")
}

func (s *fakeStore) OutputPath(fileID string) string {
	return filepath.Join("/scratch/outbound", fileID+".mp4")
}

func (s *fakeStore) evicted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictions
}

// recordingRecorder keeps every status written per job
type recordingRecorder struct {
	mu       sync.Mutex
	statuses map[string][]string
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{statuses: map[string][]string{}}
}

func (r *recordingRecorder) CreateJob(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[job.ID] = append(r.statuses[job.ID], job.Status)
	return nil
}

func (r *recordingRecorder) UpdateJobStatus(ctx context.Context, job *domain.Job) error {
	return r.CreateJob(ctx, job)
}

func (r *recordingRecorder) history(jobID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses[jobID]...)
}

type harness struct {
	gateway  *fakeGateway
	engine   *fakeEngine
	store    *fakeStore
	recorder *recordingRecorder
	pipeline *Pipeline
}

func newHarness() *harness {
	h := &harness{
		gateway:  newFakeGateway(),
		engine:   newFakeEngine(),
		store:    &fakeStore{},
		recorder: newRecordingRecorder(),
	}
	h.pipeline = NewPipeline(&PipelineConfig{
		Logger:   discardLogger(),
		Gateway:  h.gateway,
		Engine:   h.engine,
		Store:    h.store,
		Recorder: h.recorder,
	})
	return h
}

func (h *harness) job(fileID, name string) *domain.Job {
	return &domain.Job{
		ID:           "job-" + fileID,
		FileID:       fileID,
		OriginalName: name,
		TargetName:   domain.TargetName(name, ".webm", ".mp4"),
		ChannelID:    "channel-1",
		InputPath:    h.store.InputPath(fileID),
		OutputPath:   h.store.OutputPath(fileID),
	}
}

// blockFirst makes ResolveURL for fileID wait until the returned release func is called
func (h *harness) blockFirst(fileID string) (waitEntered func(t *testing.T), release func()) {
	h.gateway.blockFileID = fileID
	h.gateway.block = make(chan struct{})
	h.gateway.entered = make(chan struct{})

	waitEntered = func(t *testing.T) {
		t.Helper()
		select {
		case <-h.gateway.entered:
		case <-time.After(5 * time.Second):
			require.FailNow(t, "job never reached resolve")
		}
	}
	release = func() { close(h.gateway.block) }
	return waitEntered, release
}
