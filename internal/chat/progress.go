package chat

import (
	"context"
	"math"
	"sync"

	"github.com/cuongbtq/chat-transcoder/internal/worker/domain"
)

// progressReader is handed to the object store as a progress hook: the store
// reads from it the bytes it has just sent. Parts may be uploaded concurrently.
type progressReader struct {
	ctx   context.Context
	total int64
	out   chan<- domain.Progress

	mu   sync.Mutex
	sent int64
	last float64
}

func newProgressReader(ctx context.Context, total int64, out chan<- domain.Progress) *progressReader {
	return &progressReader{ctx: ctx, total: total, out: out, last: -1}
}

func (r *progressReader) Read(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent += int64(len(b))
	r.report()
	return len(b), nil
}

// finish reports 100% for transports that never read the hook, such as empty files
func (r *progressReader) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = r.total
	r.report()
}

func (r *progressReader) report() {
	if r.out == nil {
		return
	}

	percent := 100.0
	if r.total > 0 {
		percent = math.Floor(math.Min(100, float64(r.sent)*100/float64(r.total)))
	}
	if percent <= r.last {
		return
	}
	r.last = percent

	select {
	case r.out <- domain.Progress{Percent: percent}:
	case <-r.ctx.Done():
	}
}
