package network

import "time"

// State is the connectivity state. Exactly one holds at a time.
type State int

const (
	Idle State = iota
	ConnectingStation
	StationConnected
	AccessPointFallback
	DualMode
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case ConnectingStation:
		return "CONNECTING_STATION"
	case StationConnected:
		return "STATION_CONNECTED"
	case AccessPointFallback:
		return "ACCESS_POINT_FALLBACK"
	case DualMode:
		return "DUAL_MODE"
	default:
		return "UNKNOWN"
	}
}

// Transition records a state change.
type Transition struct {
	From State
	To   State
	At   time.Duration
}
