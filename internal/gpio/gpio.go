// Package gpio drives digital output lines (relay coils and the status LED)
// with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Output is a single digital output line.
type Output interface {
	// Set drives the line to the logical state (true = energised).
	// Active-low wiring is handled by the implementation.
	Set(on bool) error

	// Close releases the line.
	Close() error
}

// Default line offsets on gpiochip0 (BCM numbering).
const (
	DefaultChip      = "gpiochip0"
	DefaultPinRelay1 = 17 // fill pump
	DefaultPinRelay2 = 27 // drain pump
	DefaultPinLED    = 22
)
