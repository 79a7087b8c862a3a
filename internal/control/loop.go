// Package control runs the single goroutine that owns the relays, the
// automation and the connectivity state machine.
package control

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/Gamer08YT/ByteWaterlevel/internal/automation"
	"github.com/Gamer08YT/ByteWaterlevel/internal/clock"
	"github.com/Gamer08YT/ByteWaterlevel/internal/gpio"
	"github.com/Gamer08YT/ByteWaterlevel/internal/journal"
	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
	"github.com/Gamer08YT/ByteWaterlevel/internal/mqtt"
	"github.com/Gamer08YT/ByteWaterlevel/internal/network"
	"github.com/Gamer08YT/ByteWaterlevel/internal/relay"
	"github.com/Gamer08YT/ByteWaterlevel/internal/sensor"
	"github.com/Gamer08YT/ByteWaterlevel/internal/status"
)

// ErrStopped is returned to commands submitted after the loop exited.
var ErrStopped = errors.New("control: loop stopped")

const (
	// DefaultTickPeriod is how often the daemon drives Tick.
	DefaultTickPeriod = 10 * time.Millisecond
	// DefaultBlinkPeriod is the status LED toggle period.
	DefaultBlinkPeriod = 250 * time.Millisecond

	commandQueue = 8
)

// Config holds the loop's own timing.
type Config struct {
	// TelemetryInterval is the MQTT publish interval. Zero disables telemetry.
	TelemetryInterval time.Duration
	BlinkPeriod       time.Duration
	SSID              string
	// PublishQueue, when positive, puts the publisher behind a queue of that
	// size served by a sender goroutine the loop owns and closes on shutdown.
	// Zero calls the publisher directly.
	PublishQueue int
}

// Refresher is told when the network changed so mDNS can re-announce.
type Refresher interface {
	Refresh()
}

// Deps are the components the loop drives. Publisher, MQTTStatus, Journal,
// Advertiser and LED may be nil. A Publisher called directly must not block.
type Deps struct {
	Clock      clock.Clock
	Relays     *relay.Controller
	Sensor     *sensor.Cache
	Network    *network.Manager
	Automation *automation.Controller
	Tracker    *status.Tracker
	Publisher  mqtt.Publisher
	MQTTStatus mqtt.ConnectionStatus
	Journal    *journal.Recorder
	Advertiser Refresher
	LED        gpio.Output
}

// Command is a manual relay command.
type Command struct {
	Channel int
	On      bool
	// Duration arms an auto-off when On is set and Duration is positive.
	Duration time.Duration
}

type request struct {
	cmd   Command
	reply chan error
}

// Loop is the control loop.
type Loop struct {
	cfg  Config
	deps Deps
	log  *logger.Logger

	pub   mqtt.Publisher
	queue *mqtt.AsyncPublisher
	cmds  chan request
	done  chan struct{}

	ledOn         bool
	ledToggledAt  time.Duration
	published     bool
	lastPublished time.Duration
	stopped       bool
}

// New creates a Loop and hooks the relay and network callbacks into the
// journal and the mDNS advertiser.
func New(cfg Config, deps Deps, log *logger.Logger) *Loop {
	if cfg.BlinkPeriod <= 0 {
		cfg.BlinkPeriod = DefaultBlinkPeriod
	}
	l := &Loop{
		cfg:  cfg,
		deps: deps,
		log:  log,
		pub:  deps.Publisher,
		cmds: make(chan request, commandQueue),
		done: make(chan struct{}),
	}
	if deps.Publisher != nil && cfg.PublishQueue > 0 {
		q := mqtt.NewAsyncPublisher(deps.Publisher, cfg.PublishQueue, log)
		q.Start()
		l.pub, l.queue = q, q
	}
	deps.Relays.OnChange(l.relayChanged)
	deps.Network.OnTransition(l.networkChanged)
	return l
}

// Submit hands cmd to the loop and waits for the result. It returns
// ErrStopped once the loop has exited.
func (l *Loop) Submit(ctx context.Context, cmd Command) error {
	req := request{cmd: cmd, reply: make(chan error, 1)}
	select {
	case l.cmds <- req:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetRelay switches channel id through the loop. A positive d with on arms
// an auto-off after d.
func (l *Loop) SetRelay(ctx context.Context, id int, on bool, d time.Duration) error {
	return l.Submit(ctx, Command{Channel: id, On: on, Duration: d})
}

// Setup brings up the network and takes the first reading.
func (l *Loop) Setup(now time.Duration) {
	l.deps.Network.Setup(now)
	if err := l.deps.Sensor.Refresh(now); err != nil {
		l.log.Warnw("initial_reading_failed", "err", err)
	}
	l.report(now)
	l.publishSystem("STARTUP", "")
	l.deps.Journal.Record(journal.TypeSystem, "startup", nil)
}

// Tick runs one iteration: pending commands, network, sensor, relay timers,
// automation, then the LED, status and telemetry.
func (l *Loop) Tick(now time.Duration) {
	l.drain()

	l.deps.Network.Tick(now)
	l.deps.Sensor.Tick(now)
	l.deps.Relays.Tick(now)

	filling, pumping := l.deps.Automation.IsFilling(), l.deps.Automation.IsPumping()
	l.deps.Automation.Tick(now)
	if f := l.deps.Automation.IsFilling(); f != filling {
		l.deps.Journal.Record(journal.TypeAutomation, fmt.Sprintf("filling %s", onOff(f)),
			map[string]any{"level": l.deps.Sensor.Level()})
	}
	if p := l.deps.Automation.IsPumping(); p != pumping {
		l.deps.Journal.Record(journal.TypeAutomation, fmt.Sprintf("pumping %s", onOff(p)),
			map[string]any{"level": l.deps.Sensor.Level()})
	}

	l.blink(now)
	l.report(now)
	l.publishTelemetry(now)
}

func (l *Loop) drain() {
	for {
		select {
		case req := <-l.cmds:
			req.reply <- l.apply(req.cmd)
		default:
			return
		}
	}
}

func (l *Loop) apply(cmd Command) error {
	if err := l.deps.Relays.Set(cmd.Channel, cmd.On); err != nil {
		return err
	}
	if cmd.On && cmd.Duration > 0 {
		if err := l.deps.Relays.SetTimed(cmd.Channel, cmd.Duration); err != nil {
			return err
		}
	}
	l.log.Infow("manual_relay", "channel", cmd.Channel, "on", cmd.On, "duration", cmd.Duration)
	return nil
}

func (l *Loop) blink(now time.Duration) {
	if l.deps.LED == nil {
		return
	}
	period := l.cfg.BlinkPeriod
	if l.deps.Network.State() == network.AccessPointFallback {
		period /= 2
	}
	if now-l.ledToggledAt < period {
		return
	}
	l.ledToggledAt = now
	l.ledOn = !l.ledOn
	if err := l.deps.LED.Set(l.ledOn); err != nil {
		l.log.Debugw("led_write_failed", "err", err)
	}
}

func (l *Loop) report(now time.Duration) {
	if l.deps.Tracker == nil {
		return
	}
	l.deps.Tracker.Update(l.tick(now))
	if l.deps.MQTTStatus != nil {
		l.deps.Tracker.SetMQTTConnected(l.deps.MQTTStatus.IsConnected())
	}
	l.deps.Tracker.SetJournalDropped(l.deps.Journal.Dropped())
	if d, ok := l.pub.(interface{ Dropped() uint64 }); ok {
		l.deps.Tracker.SetMQTTDropped(d.Dropped())
	}
}

func (l *Loop) tick(now time.Duration) status.Tick {
	var t status.Tick
	t.Sensor = l.deps.Sensor.Snapshot()
	for i, id := range []int{relay.ChannelFill, relay.ChannelPump} {
		on, _ := l.deps.Relays.State(id)
		rem, _ := l.deps.Relays.Remaining(id, now)
		t.Relays[i] = status.RelayInfo{Channel: id, On: on, Remaining: rem}
	}
	n := l.deps.Network
	t.Network = status.NetworkInfo{
		State:     n.State().String(),
		Connected: n.IsConnected(),
		RSSI:      n.SignalStrength(),
		APActive:  n.AccessPointActive(),
		SSID:      l.cfg.SSID,
	}
	a := l.deps.Automation
	cfg := a.Config()
	t.Automation = status.AutomationInfo{
		Mode:     a.Mode().String(),
		Filling:  a.IsFilling(),
		Pumping:  a.IsPumping(),
		MaxLevel: cfg.MaxLevel,
		MinLevel: cfg.MinLevel,
		Fill:     cfg.FillLevel,
	}
	return t
}

func (l *Loop) publishTelemetry(now time.Duration) {
	if l.pub == nil || l.cfg.TelemetryInterval <= 0 {
		return
	}
	if l.published && now-l.lastPublished < l.cfg.TelemetryInterval {
		return
	}
	if l.deps.MQTTStatus != nil && !l.deps.MQTTStatus.IsConnected() {
		return
	}
	l.published = true
	l.lastPublished = now

	r := l.deps.Sensor.Snapshot()
	ch1, _ := l.deps.Relays.State(relay.ChannelFill)
	ch2, _ := l.deps.Relays.State(relay.ChannelPump)
	t := mqtt.Telemetry{
		Voltage:     r.Voltage,
		Level:       r.Level,
		Volume:      r.Volume,
		Current:     r.Current,
		Temperature: r.Temperature,
		Channel1:    ch1,
		Channel2:    ch2,
		Filling:     l.deps.Automation.IsFilling(),
		Pumping:     l.deps.Automation.IsPumping(),
	}
	if l.deps.Tracker != nil {
		t.State = status.FormatJSON(l.deps.Tracker.Snapshot())
	}
	if err := l.pub.PublishTelemetry(t); err != nil && !errors.Is(err, mqtt.ErrQueueFull) {
		l.log.Warnw("telemetry_publish_failed", "err", err)
	}
}

func (l *Loop) publishSystem(event, reason string) {
	if l.pub == nil {
		return
	}
	e := mqtt.SystemEvent{Timestamp: time.Now(), Event: event, Reason: reason, Retained: true}
	if l.deps.Tracker != nil {
		e.RawPayload = status.FormatStatusEvent(l.deps.Tracker.Snapshot(), event, reason)
	}
	if err := l.pub.PublishSystem(e); err != nil {
		l.log.Warnw("system_publish_failed", "event", event, "err", err)
	}
}

func (l *Loop) relayChanged(c relay.Change) {
	msg := fmt.Sprintf("channel %d %s", c.Channel, onOff(c.On))
	if c.Expired {
		msg += " (timer)"
	}
	l.deps.Journal.Record(journal.TypeRelay, msg, map[string]any{"channel": c.Channel, "on": c.On, "expired": c.Expired})
}

func (l *Loop) networkChanged(t network.Transition) {
	l.deps.Journal.Record(journal.TypeNetwork, t.To.String(), map[string]any{"from": t.From.String()})
	if l.deps.Advertiser != nil {
		l.deps.Advertiser.Refresh()
	}
}

// Run calls Setup, then Tick on every tick until ctx is done or a signal
// arrives, and finally switches both relays off.
func (l *Loop) Run(ctx context.Context, tick <-chan time.Time, sig <-chan os.Signal) error {
	l.Setup(l.deps.Clock.Now())
	for {
		select {
		case <-ctx.Done():
			l.shutdown("CONTEXT")
			return nil
		case s := <-sig:
			l.log.Infow("signal_received", "signal", s.String())
			l.shutdown(signalName(s))
			return nil
		case <-tick:
			l.Tick(l.deps.Clock.Now())
		}
	}
}

// Stop shuts the loop down without Run. Only for use when Run is not running.
func (l *Loop) Stop(reason string) {
	l.shutdown(reason)
}

func (l *Loop) shutdown(reason string) {
	if l.stopped {
		return
	}
	l.stopped = true
	close(l.done)

	for _, id := range []int{relay.ChannelFill, relay.ChannelPump} {
		if err := l.deps.Relays.Set(id, false); err != nil {
			l.log.Errorw("relay_off_failed", "channel", id, "err", err)
		}
	}
	if l.deps.LED != nil {
		_ = l.deps.LED.Set(false)
	}
	l.report(l.deps.Clock.Now())
	l.publishSystem("SHUTDOWN", reason)
	l.deps.Journal.Record(journal.TypeSystem, "shutdown", map[string]any{"reason": reason})
	if l.queue != nil {
		if err := l.queue.Close(); err != nil {
			l.log.Warnw("mqtt_close_failed", "err", err)
		}
	}
	l.log.Infow("control_loop_stopped", "reason", reason)
}

// Done is closed when the loop has stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
