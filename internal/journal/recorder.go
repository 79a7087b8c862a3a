package journal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
)

// Appender is the write side of a Store.
type Appender interface {
	Append(ctx context.Context, e Entry) error
}

// DefaultQueueSize bounds the number of pending entries.
const DefaultQueueSize = 64

const writeTimeout = 5 * time.Second

// Recorder queues entries for a single writer goroutine so callers never
// wait on disk. When the queue is full entries are dropped and counted.
// A nil *Recorder discards everything.
type Recorder struct {
	store Appender
	log   *logger.Logger
	queue chan Entry
	done  chan struct{}

	started   atomic.Bool
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// NewRecorder creates a Recorder. Call Start to begin writing.
func NewRecorder(store Appender, size int, log *logger.Logger) *Recorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Recorder{
		store: store,
		log:   log,
		queue: make(chan Entry, size),
		done:  make(chan struct{}),
	}
}

// Start launches the writer goroutine.
func (r *Recorder) Start() {
	if r.started.Swap(true) {
		return
	}
	go r.run()
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.store.Append(ctx, e); err != nil {
			r.log.Warnw("journal_write_failed", "type", e.Type, "err", err)
		}
		cancel()
	}
}

// Record queues an entry stamped with the current wall time.
func (r *Recorder) Record(typ, message string, meta map[string]any) {
	if r == nil {
		return
	}
	e := Entry{OccurredAt: time.Now(), Type: typ, Message: message, Meta: meta}
	select {
	case r.queue <- e:
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			r.log.Warnw("journal_queue_full", "dropped", n)
		}
	}
}

// Dropped returns how many entries were discarded.
func (r *Recorder) Dropped() uint64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Close stops accepting entries, writes what is queued and waits for the
// writer to exit. Record must not be called after Close.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.closeOnce.Do(func() { close(r.queue) })
	if r.started.Load() {
		<-r.done
	}
}
