// Package network keeps the device reachable: it joins the configured
// station network and falls back to its own access point when that fails.
//
// Tick and Setup belong to the control loop goroutine. State, IsConnected,
// Since and the access point accessors may be read from any goroutine.
package network

import (
	"sync"
	"time"

	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
)

// Default timing.
const (
	DefaultConnectTimeout    = 15 * time.Second
	DefaultReconnectInterval = 5 * time.Second
	DefaultDisconnectTimeout = 30 * time.Second
	DefaultMaxRetryInterval  = 2 * time.Minute
)

// Config holds the credentials and timing of the Manager.
type Config struct {
	StationSSID     string
	StationPassword string
	APSSID          string
	APPassword      string

	ConnectTimeout    time.Duration
	ReconnectInterval time.Duration
	DisconnectTimeout time.Duration
	// MaxRetryInterval caps the backoff between station attempts made while
	// the access point holds a shared interface.
	MaxRetryInterval time.Duration
}

// Manager is the connectivity state machine.
type Manager struct {
	cfg   Config
	radio Radio
	log   *logger.Logger

	connectionStart time.Duration
	lastAttempt     time.Duration
	lastAPAttempt   time.Duration
	disconnectedAt  time.Duration
	backoff         time.Duration
	linkLost        bool

	onTransition func(Transition)

	// Written by the loop goroutine under mu.
	mu       sync.RWMutex
	state    State
	since    time.Duration
	apActive bool
	apStart  time.Duration
}

// NewManager creates a Manager in the Idle state.
func NewManager(cfg Config, radio Radio, log *logger.Logger) *Manager {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = DefaultDisconnectTimeout
	}
	if cfg.MaxRetryInterval < cfg.ReconnectInterval {
		cfg.MaxRetryInterval = max(DefaultMaxRetryInterval, cfg.ReconnectInterval)
	}
	return &Manager{cfg: cfg, radio: radio, log: log, state: Idle}
}

// OnTransition registers fn to be called after every state change.
func (m *Manager) OnTransition(fn func(Transition)) {
	m.onTransition = fn
}

func (m *Manager) hasCredentials() bool {
	return m.cfg.StationSSID != ""
}

// Setup starts the station connection, or the access point when no station
// network is configured.
func (m *Manager) Setup(now time.Duration) {
	if m.hasCredentials() {
		m.connect(now)
		m.connectionStart = now
		m.transition(ConnectingStation, now)
		return
	}
	m.startAP(now)
	m.transition(AccessPointFallback, now)
}

// Tick advances the state machine.
func (m *Manager) Tick(now time.Duration) {
	up := m.radio.Connected()

	switch m.State() {
	case ConnectingStation:
		if up {
			m.transition(StationConnected, now)
			return
		}
		if now-m.connectionStart >= m.cfg.ConnectTimeout {
			m.log.Warnw("wifi_connect_timeout", "ssid", m.cfg.StationSSID, "timeout", m.cfg.ConnectTimeout)
			m.startAP(now)
			m.transition(AccessPointFallback, now)
		}

	case StationConnected:
		if up {
			if m.linkLost {
				m.log.Infow("wifi_link_restored", "down_for", now-m.disconnectedAt)
				m.linkLost = false
			}
			return
		}
		if !m.linkLost {
			m.log.Warnw("wifi_link_lost", "ssid", m.cfg.StationSSID)
			m.linkLost = true
			m.disconnectedAt = now
			m.connect(now)
			return
		}
		if now-m.disconnectedAt >= m.cfg.DisconnectTimeout {
			m.startAP(now)
			m.transition(DualMode, now)
			return
		}
		m.retry(now)

	case AccessPointFallback, DualMode:
		if up {
			m.stopAP()
			m.linkLost = false
			m.backoff = 0
			m.transition(StationConnected, now)
			return
		}
		m.superviseAP(now)
		if m.hasCredentials() {
			m.retryBehindAP(now)
		}
	}
}

// superviseAP restarts the access point when it failed to start or went down
// after starting. A fresh start gets ReconnectInterval to come up.
func (m *Manager) superviseAP(now time.Duration) {
	if m.apActive && now-m.apStart >= m.cfg.ReconnectInterval && !m.radio.AccessPointUp() {
		m.log.Warnw("wifi_ap_lost", "ssid", m.cfg.APSSID, "started", m.apStart)
		m.setAP(false, m.apStart)
	}
	if !m.apActive && now-m.lastAPAttempt >= m.cfg.ReconnectInterval {
		m.startAP(now)
	}
}

// retryBehindAP retries the station while the access point serves. When both
// share an interface an attempt takes the access point down, so it is only
// made while the network is in range and the gap doubles after each one.
func (m *Manager) retryBehindAP(now time.Duration) {
	if !m.radio.SharedInterface() {
		m.retry(now)
		return
	}
	if m.backoff < m.cfg.ReconnectInterval {
		m.backoff = m.cfg.ReconnectInterval
	}
	if now-m.lastAttempt < m.backoff || !m.radio.Visible(m.cfg.StationSSID) {
		return
	}
	m.log.Infow("wifi_station_retry", "ssid", m.cfg.StationSSID, "next_after", min(2*m.backoff, m.cfg.MaxRetryInterval))
	m.connect(now)
	m.backoff = min(2*m.backoff, m.cfg.MaxRetryInterval)
}

func (m *Manager) retry(now time.Duration) {
	if now-m.lastAttempt >= m.cfg.ReconnectInterval {
		m.connect(now)
	}
}

func (m *Manager) connect(now time.Duration) {
	m.lastAttempt = now
	if err := m.radio.Connect(m.cfg.StationSSID, m.cfg.StationPassword); err != nil {
		m.log.Warnw("wifi_connect_failed", "ssid", m.cfg.StationSSID, "err", err)
	}
}

func (m *Manager) startAP(now time.Duration) {
	m.lastAPAttempt = now
	if err := m.radio.StartAccessPoint(m.cfg.APSSID, m.cfg.APPassword); err != nil {
		m.log.Errorw("wifi_ap_start_failed", "ssid", m.cfg.APSSID, "err", err)
		return
	}
	m.setAP(true, now)
	m.log.Infow("wifi_ap_started", "ssid", m.cfg.APSSID)
}

func (m *Manager) stopAP() {
	if !m.apActive {
		return
	}
	if err := m.radio.StopAccessPoint(); err != nil {
		m.log.Warnw("wifi_ap_stop_failed", "err", err)
		return
	}
	m.setAP(false, m.apStart)
	m.log.Infow("wifi_ap_stopped", "ssid", m.cfg.APSSID)
}

func (m *Manager) setAP(active bool, start time.Duration) {
	m.mu.Lock()
	m.apActive = active
	m.apStart = start
	m.mu.Unlock()
}

func (m *Manager) transition(to State, now time.Duration) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.since = now
	m.mu.Unlock()

	if from == to {
		return
	}
	m.log.Infow("wifi_state_changed", "from", from.String(), "to", to.String())
	if m.onTransition != nil {
		m.onTransition(Transition{From: from, To: to, At: now})
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Since returns the clock time of the last transition.
func (m *Manager) Since() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// IsConnected reports whether the station link is considered usable.
// DualMode counts as connected.
func (m *Manager) IsConnected() bool {
	switch m.State() {
	case StationConnected, DualMode:
		return true
	default:
		return false
	}
}

// SignalStrength returns the station RSSI in dBm, or 0 without a link.
func (m *Manager) SignalStrength() int {
	if !m.radio.Connected() {
		return 0
	}
	return m.radio.SignalStrength()
}

// AccessPointActive reports whether the fallback access point is running.
func (m *Manager) AccessPointActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.apActive
}

// AccessPointSince returns when the access point was last started.
func (m *Manager) AccessPointSince() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.apStart
}
