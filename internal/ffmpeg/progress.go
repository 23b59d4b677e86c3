package ffmpeg

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/chat-transcoder/internal/worker/domain"
)

// ProgressTracker turns ffmpeg `-progress` key=value lines into percentage reports
type ProgressTracker struct {
	duration time.Duration
	last     float64
}

// NewProgressTracker creates a tracker for a source of the given duration.
// With an unknown (zero) duration only the final 100% report is emitted.
func NewProgressTracker(duration time.Duration) *ProgressTracker {
	return &ProgressTracker{duration: duration, last: -1}
}

// Parse consumes one line and reports whether it produced a new whole-percent value
func (t *ProgressTracker) Parse(line string) (domain.Progress, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return domain.Progress{}, false
	}

	switch key {
	case "out_time_ms", "out_time_us":
		// ffmpeg reports both keys in microseconds
		if t.duration <= 0 {
			return domain.Progress{}, false
		}
		us, err := strconv.ParseFloat(value, 64)
		if err != nil || us < 0 {
			return domain.Progress{}, false
		}
		processed := time.Duration(us) * time.Microsecond
		percent := math.Floor(math.Min(100, float64(processed)/float64(t.duration)*100))
		if percent <= t.last {
			return domain.Progress{}, false
		}
		t.last = percent
		return domain.Progress{Percent: percent, Processed: processed}, true

	case "progress":
		if value != "end" || t.last >= 100 {
			return domain.Progress{}, false
		}
		t.last = 100
		return domain.Progress{Percent: 100, Processed: t.duration}, true
	}

	return domain.Progress{}, false
}
