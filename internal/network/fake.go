package network

import "sync"

// FakeRadio is a scripted Radio for tests.
type FakeRadio struct {
	mu sync.Mutex

	Up   bool
	RSSI int

	ConnectError error
	APError      error

	// Shared models a single interface: Connect takes the access point down.
	Shared bool
	// OutOfRange hides the station network from scans.
	OutOfRange bool

	// Connects records the SSID of every Connect call.
	Connects  []string
	APStarts  int
	APStops   int
	APRunning bool
}

// Connect records the attempt.
func (f *FakeRadio) Connect(ssid, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connects = append(f.Connects, ssid)
	if f.Shared {
		f.APRunning = false
	}
	return f.ConnectError
}

// Connected returns Up.
func (f *FakeRadio) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Up
}

// SignalStrength returns RSSI.
func (f *FakeRadio) SignalStrength() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RSSI
}

// StartAccessPoint records the start unless APError is set.
func (f *FakeRadio) StartAccessPoint(ssid, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.APStarts++
	if f.APError != nil {
		return f.APError
	}
	f.APRunning = true
	return nil
}

// StopAccessPoint records the stop.
func (f *FakeRadio) StopAccessPoint() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.APStops++
	f.APRunning = false
	return nil
}

// AccessPointUp returns APRunning.
func (f *FakeRadio) AccessPointUp() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.APRunning
}

// SharedInterface returns Shared.
func (f *FakeRadio) SharedInterface() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Shared
}

// Visible reports every network in range unless OutOfRange is set.
func (f *FakeRadio) Visible(ssid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.OutOfRange
}

// SetUp changes the link state.
func (f *FakeRadio) SetUp(up bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Up = up
}

// SetAccessPoint changes whether the access point is serving.
func (f *FakeRadio) SetAccessPoint(running bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.APRunning = running
}

// ConnectCount returns the number of Connect calls.
func (f *FakeRadio) ConnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Connects)
}
