package config

import "github.com/spf13/viper"

// Default device identity and fallback access point credentials.
const (
	DefaultName       = "BYTELEVEL"
	DefaultAPSSID     = "BYTELEVEL"
	DefaultAPPassword = "BYTESTORE"
)

// Calibration used when the configured one is unusable.
const (
	DefaultCalibrationMin    = 0.6
	DefaultCalibrationMax    = 3.0
	DefaultCalibrationVolume = 1000.0
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", DefaultName)
	v.SetDefault("log.level", "info")

	v.SetDefault("auto.mode", 0)
	v.SetDefault("auto.max", 90.0)
	v.SetDefault("auto.min", 20.0)
	v.SetDefault("auto.fill", 50.0)
	v.SetDefault("auto.interval_ms", 1000)

	v.SetDefault("calibration.min", DefaultCalibrationMin)
	v.SetDefault("calibration.max", DefaultCalibrationMax)
	v.SetDefault("calibration.volume", DefaultCalibrationVolume)
	v.SetDefault("calibration.shunt", 150.0)

	v.SetDefault("sensor.samples", 10)
	v.SetDefault("sensor.delay_ms", 10)
	v.SetDefault("sensor.interval_ms", 1000)
	v.SetDefault("sensor.reference", 3.3)
	v.SetDefault("sensor.resolution", 4095)
	v.SetDefault("sensor.adc", "/sys/bus/iio/devices/iio:device0/in_voltage0_raw")
	v.SetDefault("sensor.thermal", "/sys/class/thermal/thermal_zone0/temp")

	v.SetDefault("relay.chip", "gpiochip0")
	v.SetDefault("relay.ch1", 17)
	v.SetDefault("relay.ch2", 27)
	v.SetDefault("relay.active_low", false)

	v.SetDefault("hardware.led", true)
	v.SetDefault("led.pin", 22)

	v.SetDefault("wifi.interface", "wlan0")
	v.SetDefault("wifi.client.ssid", "")
	v.SetDefault("wifi.client.password", "")
	v.SetDefault("wifi.ap.ssid", DefaultAPSSID)
	v.SetDefault("wifi.ap.password", DefaultAPPassword)
	v.SetDefault("wifi.ap.interface", "")

	v.SetDefault("mqtt.state", false)
	v.SetDefault("mqtt.host", "")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.user", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", "waterlevel")
	v.SetDefault("mqtt.interval_ms", 10000)

	v.SetDefault("web.address", ":80")
	v.SetDefault("admin.state", false)
	v.SetDefault("admin.password", "")

	v.SetDefault("ota", true)
	v.SetDefault("update.url", "")
	v.SetDefault("journal.path", "bytelevel.db")
}
