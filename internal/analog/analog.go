// Package analog reads the level sensor ADC and the board thermal zone.
// Both are exposed by the Linux kernel as sysfs text files, so the real
// implementations are plain file reads; fakes script values for tests.
package analog

// Reader returns one raw ADC conversion.
type Reader interface {
	ReadRaw() (int, error)
}

// Thermometer returns the device temperature in degrees Celsius.
type Thermometer interface {
	Celsius() (float64, error)
}

// Default sysfs locations.
const (
	DefaultADCPath     = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"
	DefaultThermalPath = "/sys/class/thermal/thermal_zone0/temp"
)
