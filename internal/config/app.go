package config

import (
	"time"

	"github.com/Gamer08YT/ByteWaterlevel/internal/automation"
	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
	"github.com/Gamer08YT/ByteWaterlevel/internal/network"
	"github.com/Gamer08YT/ByteWaterlevel/internal/sensor"
)

// App is the typed configuration built once at boot.
type App struct {
	Name     string
	LogLevel string

	Sensor     sensor.Config
	ADCPath    string
	ThermalDev string

	Auto automation.Config
	WiFi WiFi

	Relay Relay
	LED   LED
	MQTT  MQTT
	Web   Web
	Admin Admin

	OTA         bool
	UpdateURL   string
	JournalPath string
}

// WiFi holds the connectivity settings.
type WiFi struct {
	Interface string
	// APInterface hosts the access point. Empty shares Interface.
	APInterface string
	network.Config
}

// Relay describes the relay GPIO lines.
type Relay struct {
	Chip      string
	Fill      int
	Pump      int
	ActiveLow bool
}

// LED describes the status LED line.
type LED struct {
	Enabled bool
	Pin     int
}

// MQTT holds the telemetry broker settings.
type MQTT struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Prefix   string
	Interval time.Duration
}

// Web holds the HTTP listener settings.
type Web struct {
	Address string
}

// Admin protects write endpoints with basic auth when Enabled.
type Admin struct {
	Enabled  bool
	Password string
}

// Load builds App from p. Invalid values fall back to defaults with a warning.
func Load(p *Provider, log *logger.Logger) App {
	app := App{
		Name:       p.String("name"),
		LogLevel:   p.String("log.level"),
		ADCPath:    p.String("sensor.adc"),
		ThermalDev: p.String("sensor.thermal"),
		Relay: Relay{
			Chip:      p.String("relay.chip"),
			Fill:      p.Int("relay.ch1"),
			Pump:      p.Int("relay.ch2"),
			ActiveLow: p.Bool("relay.active_low"),
		},
		LED: LED{
			Enabled: p.Bool("hardware.led"),
			Pin:     p.Int("led.pin"),
		},
		MQTT: MQTT{
			Enabled:  p.Bool("mqtt.state"),
			Host:     p.String("mqtt.host"),
			Port:     p.Int("mqtt.port"),
			User:     p.String("mqtt.user"),
			Password: p.String("mqtt.password"),
			Prefix:   p.String("mqtt.topic"),
			Interval: p.Duration("mqtt.interval_ms"),
		},
		Web:         Web{Address: p.String("web.address")},
		Admin:       Admin{Enabled: p.Bool("admin.state"), Password: p.String("admin.password")},
		OTA:         p.Bool("ota"),
		UpdateURL:   p.String("update.url"),
		JournalPath: p.String("journal.path"),
	}
	if app.Name == "" {
		app.Name = DefaultName
	}

	app.Sensor = loadSensor(p, log)
	app.Auto = loadAuto(p, log)
	app.WiFi = WiFi{
		Interface:   p.String("wifi.interface"),
		APInterface: p.String("wifi.ap.interface"),
		Config: network.Config{
			StationSSID:     p.String("wifi.client.ssid"),
			StationPassword: p.String("wifi.client.password"),
			APSSID:          p.String("wifi.ap.ssid"),
			APPassword:      p.String("wifi.ap.password"),
		},
	}
	if app.WiFi.APSSID == "" {
		log.Warnw("config_invalid", "key", "wifi.ap.ssid", "fallback", DefaultAPSSID)
		app.WiFi.APSSID = DefaultAPSSID
		app.WiFi.APPassword = DefaultAPPassword
	}
	// WPA2 needs at least eight characters.
	if pw := app.WiFi.APPassword; pw != "" && len(pw) < 8 {
		log.Warnw("config_invalid", "key", "wifi.ap.password", "fallback", DefaultAPPassword)
		app.WiFi.APPassword = DefaultAPPassword
	}
	if app.MQTT.Interval <= 0 {
		app.MQTT.Interval = 10 * time.Second
	}
	if app.MQTT.Prefix == "" {
		app.MQTT.Prefix = "waterlevel"
	}
	return app
}

func loadSensor(p *Provider, log *logger.Logger) sensor.Config {
	cal := sensor.Calibration{
		MinVoltage:   p.Float("calibration.min"),
		MaxVoltage:   p.Float("calibration.max"),
		TankCapacity: p.Float("calibration.volume"),
	}
	if err := cal.Validate(); err != nil {
		log.Warnw("config_invalid", "key", "calibration", "err", err)
		cal = sensor.Calibration{
			MinVoltage:   DefaultCalibrationMin,
			MaxVoltage:   DefaultCalibrationMax,
			TankCapacity: DefaultCalibrationVolume,
		}
	}
	return sensor.Config{
		Calibration:      cal,
		ReferenceVoltage: p.Float("sensor.reference"),
		Resolution:       p.Float("sensor.resolution"),
		Samples:          p.Int("sensor.samples"),
		SampleDelay:      p.Duration("sensor.delay_ms"),
		ScanInterval:     p.Duration("sensor.interval_ms"),
		ShuntOhms:        p.Float("calibration.shunt"),
	}
}

func loadAuto(p *Provider, log *logger.Logger) automation.Config {
	mode, err := automation.ParseMode(p.Int("auto.mode"))
	if err != nil {
		log.Warnw("config_invalid", "key", "auto.mode", "err", err, "fallback", automation.Off.String())
	}
	return automation.Config{
		Mode:      mode,
		MaxLevel:  p.Float("auto.max"),
		MinLevel:  p.Float("auto.min"),
		FillLevel: p.Float("auto.fill"),
		Interval:  p.Duration("auto.interval_ms"),
	}
}
