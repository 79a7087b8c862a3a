package analog

import "errors"

// FakeReader is a test double that returns scripted raw values.
type FakeReader struct {
	// Samples contains scripted raw values to return.
	// Each call to ReadRaw() consumes the next sample.
	Samples []int

	index int

	// Reads counts calls to ReadRaw.
	Reads int

	// ReadError, if set, will be returned by ReadRaw()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...int) *FakeReader {
	return &FakeReader{Samples: samples}
}

// ReadRaw returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) ReadRaw() (int, error) {
	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}

	v := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return v, nil
}

// Reset rewinds to the first sample.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Reads = 0
}

// FakeThermometer returns a fixed temperature.
type FakeThermometer struct {
	Value float64
	Err   error
}

// Celsius returns the configured value or error.
func (f *FakeThermometer) Celsius() (float64, error) {
	if f.Err != nil {
		return 0, f.Err
	}
	return f.Value, nil
}
