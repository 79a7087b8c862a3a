package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string         `json:"event,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Name           string         `json:"name"`
	Version        string         `json:"version"`
	Sensor         SensorJSON     `json:"sensor"`
	Relays         []RelayJSON    `json:"relays"`
	Network        NetworkJSON    `json:"network"`
	Automation     AutomationJSON `json:"automation"`
	MQTT           MQTTStatus     `json:"mqtt"`
	JournalDropped uint64         `json:"journal_dropped"`
	MQTTDropped    uint64         `json:"mqtt_dropped"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
	StartTime      string         `json:"start_time"`
	Timestamp      string         `json:"timestamp"`
	Config         ConfigJSON     `json:"config"`
}

// SensorJSON is the cached sensor reading.
type SensorJSON struct {
	Ready       bool    `json:"ready"`
	Voltage     float64 `json:"voltage"`
	Level       float64 `json:"level"`
	Volume      float64 `json:"volume"`
	Current     float64 `json:"current"`
	Temperature float64 `json:"temperature"`
	UpdatedMs   int64   `json:"updated_ms"`
}

// RelayJSON is one output channel.
type RelayJSON struct {
	Channel     int   `json:"channel"`
	State       bool  `json:"state"`
	RemainingMs int64 `json:"remaining_ms"`
}

// NetworkJSON is the connectivity state.
type NetworkJSON struct {
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	RSSI      int    `json:"rssi"`
	APActive  bool   `json:"ap_active"`
	SSID      string `json:"ssid,omitempty"`
}

// AutomationJSON is the automation state.
type AutomationJSON struct {
	Mode    string  `json:"mode"`
	Filling bool    `json:"filling"`
	Pumping bool    `json:"pumping"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
	Fill    float64 `json:"fill"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of device config.
type ConfigJSON struct {
	TankCapacity float64 `json:"tank_capacity"`
	ScanMs       int64   `json:"scan_ms"`
	HTTPAddress  string  `json:"http_address"`
}

func buildInner(snap Snapshot) StatusInner {
	relays := make([]RelayJSON, 0, len(snap.Relays))
	for _, r := range snap.Relays {
		relays = append(relays, RelayJSON{
			Channel:     r.Channel,
			State:       r.On,
			RemainingMs: r.Remaining.Milliseconds(),
		})
	}

	mode := snap.Automation.Mode
	if mode == "" {
		mode = "UNKNOWN"
	}
	state := snap.Network.State
	if state == "" {
		state = "UNKNOWN"
	}

	return StatusInner{
		Name:    snap.Config.Name,
		Version: snap.Config.Version,
		Sensor: SensorJSON{
			Ready:       snap.Sensor.Valid,
			Voltage:     snap.Sensor.Voltage,
			Level:       snap.Sensor.Level,
			Volume:      snap.Sensor.Volume,
			Current:     snap.Sensor.Current,
			Temperature: snap.Sensor.Temperature,
			UpdatedMs:   snap.Sensor.UpdatedAt.Milliseconds(),
		},
		Relays: relays,
		Network: NetworkJSON{
			State:     state,
			Connected: snap.Network.Connected,
			RSSI:      snap.Network.RSSI,
			APActive:  snap.Network.APActive,
			SSID:      snap.Network.SSID,
		},
		Automation: AutomationJSON{
			Mode:    mode,
			Filling: snap.Automation.Filling,
			Pumping: snap.Automation.Pumping,
			Max:     snap.Automation.MaxLevel,
			Min:     snap.Automation.MinLevel,
			Fill:    snap.Automation.Fill,
		},
		MQTT:           MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		JournalDropped: snap.JournalDropped,
		MQTTDropped:    snap.MQTTDropped,
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:      snap.Now.UTC().Format(time.RFC3339),
		Config: ConfigJSON{
			TankCapacity: snap.Config.TankCapacity,
			ScanMs:       snap.Config.ScanMs,
			HTTPAddress:  snap.Config.HTTPAddress,
		},
	}
}

// Build returns the status document for snap.
func Build(snap Snapshot) StatusJSON {
	return StatusJSON{Status: buildInner(snap)}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(Build(snap), "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
