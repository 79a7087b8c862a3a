package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
)

func TestAsyncPublisherSendsInOrder(t *testing.T) {
	fake := NewFakePublisher()
	a := NewAsyncPublisher(fake, 4, logger.Nop())
	a.Start()

	if err := a.PublishSystem(SystemEvent{Event: "STARTUP"}); err != nil {
		t.Fatal(err)
	}
	if err := a.PublishTelemetry(Telemetry{Level: 42}); err != nil {
		t.Fatal(err)
	}
	if err := a.PublishSystem(SystemEvent{Event: "SHUTDOWN"}); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	if got := fake.Events(); len(got) != 2 || got[0] != "STARTUP" || got[1] != "SHUTDOWN" {
		t.Errorf("events = %v", got)
	}
	if got := fake.Published(); len(got) != 1 || got[0].Level != 42 {
		t.Errorf("telemetry = %+v", got)
	}
	if !fake.Closed {
		t.Error("wrapped publisher not closed")
	}
}

func TestAsyncPublisherNeverWaitsOnBroker(t *testing.T) {
	fake := NewFakePublisher()
	fake.Gate = make(chan struct{})
	a := NewAsyncPublisher(fake, 2, logger.Nop())
	a.Start()

	start := time.Now()
	var full int
	for i := 0; i < 10; i++ {
		if err := a.PublishTelemetry(Telemetry{Level: float64(i)}); errors.Is(err, ErrQueueFull) {
			full++
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("publishing took %v with a stalled broker", elapsed)
	}
	// One in flight plus two queued at most.
	if full < 7 {
		t.Errorf("queue-full errors = %d, want at least 7", full)
	}
	if got := a.Dropped(); got != uint64(full) {
		t.Errorf("Dropped = %d, want %d", got, full)
	}

	close(fake.Gate)
	a.Close()
	if got := fake.TelemetryCount(); got != 10-full {
		t.Errorf("sent %d, want %d", got, 10-full)
	}
}

func TestAsyncPublisherCloseGivesUp(t *testing.T) {
	fake := NewFakePublisher()
	fake.Gate = make(chan struct{})
	defer close(fake.Gate)
	a := NewAsyncPublisher(fake, 2, logger.Nop())
	a.FlushTimeout = 20 * time.Millisecond
	a.Start()
	a.PublishSystem(SystemEvent{Event: "SHUTDOWN"})

	done := make(chan struct{})
	go func() {
		a.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close waited on a stalled broker")
	}
	if err := a.PublishTelemetry(Telemetry{}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("publish after Close = %v, want ErrQueueFull", err)
	}
}

func TestAsyncPublisherCountsBacklogDrops(t *testing.T) {
	inner := &droppingPublisher{FakePublisher: NewFakePublisher(), n: 5}
	a := NewAsyncPublisher(inner, 1, logger.Nop())
	if got := a.Dropped(); got != 5 {
		t.Errorf("Dropped = %d, want 5", got)
	}
	if !a.IsConnected() {
		t.Error("IsConnected should follow the wrapped publisher")
	}
}

type droppingPublisher struct {
	*FakePublisher
	n uint64
}

func (d *droppingPublisher) Dropped() uint64 { return d.n }
