package mqtt

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
)

// ErrQueueFull is returned when a publication is dropped because the broker
// has not kept up.
var ErrQueueFull = errors.New("mqtt: publish queue full")

// DefaultQueueSize bounds the publications waiting for the broker.
const DefaultQueueSize = 16

const defaultFlushTimeout = 5 * time.Second

type publication struct {
	telemetry *Telemetry
	system    *SystemEvent
}

// AsyncPublisher hands publications to a single sender goroutine so callers
// never wait on the broker. When the queue is full publications are dropped
// and counted.
type AsyncPublisher struct {
	inner Publisher
	log   *logger.Logger
	queue chan publication
	done  chan struct{}

	// FlushTimeout bounds how long Close waits for queued publications.
	FlushTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	started atomic.Bool
	dropped atomic.Uint64
}

// NewAsyncPublisher wraps inner. Call Start to begin sending.
func NewAsyncPublisher(inner Publisher, size int, log *logger.Logger) *AsyncPublisher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &AsyncPublisher{
		inner:        inner,
		log:          log,
		queue:        make(chan publication, size),
		done:         make(chan struct{}),
		FlushTimeout: defaultFlushTimeout,
	}
}

// Start launches the sender goroutine.
func (a *AsyncPublisher) Start() {
	if a.started.Swap(true) {
		return
	}
	go a.run()
}

func (a *AsyncPublisher) run() {
	defer close(a.done)
	for p := range a.queue {
		if p.system != nil {
			if err := a.inner.PublishSystem(*p.system); err != nil {
				a.log.Warnw("mqtt_system_publish_failed", "event", p.system.Event, "err", err)
			}
			continue
		}
		if err := a.inner.PublishTelemetry(*p.telemetry); err != nil && !errors.Is(err, ErrNotConnected) {
			a.log.Warnw("telemetry_publish_failed", "err", err)
		}
	}
}

// PublishTelemetry queues t.
func (a *AsyncPublisher) PublishTelemetry(t Telemetry) error {
	return a.enqueue(publication{telemetry: &t})
}

// PublishSystem queues event.
func (a *AsyncPublisher) PublishSystem(event SystemEvent) error {
	return a.enqueue(publication{system: &event})
}

func (a *AsyncPublisher) enqueue(p publication) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrQueueFull
	}
	select {
	case a.queue <- p:
		return nil
	default:
		if n := a.dropped.Add(1); n == 1 || n%100 == 0 {
			a.log.Warnw("mqtt_queue_full", "dropped", n)
		}
		return ErrQueueFull
	}
}

// IsConnected reports the wrapped publisher's connection state, or false if
// it cannot tell.
func (a *AsyncPublisher) IsConnected() bool {
	if s, ok := a.inner.(ConnectionStatus); ok {
		return s.IsConnected()
	}
	return false
}

// Dropped returns how many publications were discarded, here and in the
// wrapped publisher's offline backlog.
func (a *AsyncPublisher) Dropped() uint64 {
	n := a.dropped.Load()
	if d, ok := a.inner.(interface{ Dropped() uint64 }); ok {
		n += d.Dropped()
	}
	return n
}

// Close stops accepting publications, gives the sender FlushTimeout to send
// what is queued and closes the wrapped publisher.
func (a *AsyncPublisher) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	if a.started.Load() {
		select {
		case <-a.done:
		case <-time.After(a.FlushTimeout):
			a.log.Warnw("mqtt_flush_timeout", "pending", len(a.queue))
		}
	}
	return a.inner.Close()
}
