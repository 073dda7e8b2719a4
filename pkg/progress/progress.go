package progress

import (
	"sync"
	"time"
)

// Stage represents a step in an item's lifecycle as seen by observers.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageBootstrap  Stage = "bootstrap"
	StageProcessing Stage = "processing"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
	StageReverted   Stage = "reverted"
	StageRemoved    Stage = "removed"
)

// Update holds a progress update for a single queue item.
type Update struct {
	ItemID    string
	Kind      string
	Stage     Stage
	Percent   int
	Message   string
	Timestamp time.Time
}

// Reporter is the interface for progress reporting
type Reporter interface {
	Report(update Update)
}

// ReporterFunc adapts a plain function to Reporter.
type ReporterFunc func(Update)

func (f ReporterFunc) Report(update Update) { f(update) }

// ChannelReporter sends updates to a channel
type ChannelReporter struct {
	ch chan<- Update
}

// NewChannelReporter creates a reporter that sends updates to ch
func NewChannelReporter(ch chan<- Update) *ChannelReporter {
	return &ChannelReporter{ch: ch}
}

func (r *ChannelReporter) Report(update Update) {
	select {
	case r.ch <- update:
	default: // non-blocking: drop if channel is full
	}
}

// MultiReporter fans out to multiple reporters
type MultiReporter struct {
	mu        sync.RWMutex
	reporters []Reporter
}

func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	return &MultiReporter{reporters: reporters}
}

func (m *MultiReporter) Add(r Reporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporters = append(m.reporters, r)
}

func (m *MultiReporter) Report(update Update) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reporters {
		r.Report(update)
	}
}

// NoopReporter discards all updates
type NoopReporter struct{}

func (n NoopReporter) Report(_ Update) {}

// Monotonic wraps a fractional progress callback so that reported values
// never decrease and stay within [0, 1].
func Monotonic(fn func(float64)) func(float64) {
	if fn == nil {
		return func(float64) {}
	}
	var (
		mu   sync.Mutex
		last float64
	)
	return func(v float64) {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		mu.Lock()
		if v < last {
			v = last
		}
		last = v
		mu.Unlock()
		fn(v)
	}
}
