// Package status provides a thread-safe view of the device state for the web
// surface and telemetry. The control loop writes it once per tick.
package status

import (
	"sync"
	"time"

	"github.com/Gamer08YT/ByteWaterlevel/internal/sensor"
)

// RelayInfo is the state of one output channel.
type RelayInfo struct {
	Channel   int
	On        bool
	Remaining time.Duration // zero without a pending auto-off
}

// NetworkInfo is the connectivity state.
type NetworkInfo struct {
	State     string
	Connected bool
	RSSI      int
	APActive  bool
	SSID      string
}

// AutomationInfo is the automation state and thresholds.
type AutomationInfo struct {
	Mode     string
	Filling  bool
	Pumping  bool
	MaxLevel float64
	MinLevel float64
	Fill     float64
}

// Config contains device configuration for display.
type Config struct {
	Name         string
	Version      string
	Broker       string
	HTTPAddress  string
	TankCapacity float64
	ScanMs       int64
}

// Tick is what the control loop reports after each tick.
type Tick struct {
	Sensor     sensor.Reading
	Relays     [2]RelayInfo
	Network    NetworkInfo
	Automation AutomationInfo
}

// Snapshot is a point-in-time view of device state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Tick
	MQTTConnected  bool
	JournalDropped uint64
	MQTTDropped    uint64
	StartTime      time.Time
	Now            time.Time
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable device state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Tick: Tick{
				Relays: [2]RelayInfo{{Channel: 1}, {Channel: 2}},
			},
		},
	}
}

// Update replaces the per-tick state.
func (t *Tracker) Update(tick Tick) {
	t.mu.Lock()
	t.snap.Tick = tick
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetJournalDropped records how many journal entries were discarded.
func (t *Tracker) SetJournalDropped(n uint64) {
	t.mu.Lock()
	t.snap.JournalDropped = n
	t.mu.Unlock()
}

// SetMQTTDropped records how many MQTT publications were discarded.
func (t *Tracker) SetMQTTDropped(n uint64) {
	t.mu.Lock()
	t.snap.MQTTDropped = n
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the device state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
