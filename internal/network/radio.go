package network

// Radio is the Wi-Fi hardware as seen by the Manager. Implementations must
// not block: Connect and the access point calls start work and return, and
// the queries answer from cached state.
type Radio interface {
	// Connect starts joining the station network.
	Connect(ssid, password string) error
	// Connected reports whether the station link is up.
	Connected() bool
	// SignalStrength returns the station RSSI in dBm.
	SignalStrength() int
	StartAccessPoint(ssid, password string) error
	StopAccessPoint() error
	// AccessPointUp reports whether the access point is actually serving.
	AccessPointUp() bool
	// SharedInterface reports whether station and access point use one
	// interface, so that a station attempt takes the access point down.
	SharedInterface() bool
	// Visible reports whether ssid showed up in the last scan.
	Visible(ssid string) bool
}
