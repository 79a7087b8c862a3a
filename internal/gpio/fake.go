package gpio

import "sync"

// FakeOutput is a test double that records every value written to it.
type FakeOutput struct {
	mu sync.Mutex

	// Writes contains every value passed to Set, in order.
	Writes []bool

	// SetError, if set, will be returned by Set and the write is not recorded.
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeOutput creates a FakeOutput.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the value.
func (f *FakeOutput) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.Writes = append(f.Writes, on)
	return nil
}

// Value returns the last written value (false if never written).
func (f *FakeOutput) Value() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Writes) == 0 {
		return false
	}
	return f.Writes[len(f.Writes)-1]
}

// WriteCount returns how many values were written.
func (f *FakeOutput) WriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Writes)
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset clears recorded writes and errors.
func (f *FakeOutput) Reset() {
	f.mu.Lock()
	f.Writes = nil
	f.SetError = nil
	f.Closed = false
	f.mu.Unlock()
}
