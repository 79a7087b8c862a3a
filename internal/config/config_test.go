package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Gamer08YT/ByteWaterlevel/internal/automation"
	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMissingFileUsesDefaults(t *testing.T) {
	p, err := Open(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	app := Load(p, logger.Nop())

	if app.Name != DefaultName {
		t.Errorf("name = %q", app.Name)
	}
	if app.WiFi.APSSID != DefaultAPSSID || app.WiFi.APPassword != DefaultAPPassword {
		t.Errorf("ap = %q/%q", app.WiFi.APSSID, app.WiFi.APPassword)
	}
	if app.Auto.Mode != automation.Off {
		t.Errorf("mode = %v, want OFF", app.Auto.Mode)
	}
	if app.MQTT.Prefix != "waterlevel" || app.MQTT.Interval != 10*time.Second {
		t.Errorf("mqtt = %+v", app.MQTT)
	}
	if app.Web.Address != ":80" {
		t.Errorf("web address = %q", app.Web.Address)
	}
	if app.Sensor.Samples != 10 || app.Sensor.SampleDelay != 10*time.Millisecond {
		t.Errorf("sensor = %+v", app.Sensor)
	}
	if app.Relay.Fill != 17 || app.Relay.Pump != 27 {
		t.Errorf("relay = %+v", app.Relay)
	}
}

func TestReadsJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"name": "TANK1",
		"auto": {"mode": 1, "max": 95, "min": 15, "fill": 40},
		"calibration": {"min": 0.5, "max": 2.5, "volume": 500},
		"wifi": {"client": {"ssid": "home", "password": "secret"}, "ap": {"interface": "uap0"}},
		"mqtt": {"state": true, "host": "broker", "interval_ms": 2000}
	}`)
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	app := Load(p, logger.Nop())

	if app.Name != "TANK1" {
		t.Errorf("name = %q", app.Name)
	}
	if app.Auto.Mode != automation.FillAndPump || app.Auto.MaxLevel != 95 || app.Auto.MinLevel != 15 || app.Auto.FillLevel != 40 {
		t.Errorf("auto = %+v", app.Auto)
	}
	if app.Sensor.MinVoltage != 0.5 || app.Sensor.MaxVoltage != 2.5 || app.Sensor.TankCapacity != 500 {
		t.Errorf("calibration = %+v", app.Sensor.Calibration)
	}
	if app.WiFi.StationSSID != "home" || app.WiFi.StationPassword != "secret" || app.WiFi.APInterface != "uap0" {
		t.Errorf("wifi = %+v", app.WiFi)
	}
	if !app.MQTT.Enabled || app.MQTT.Host != "broker" || app.MQTT.Interval != 2*time.Second {
		t.Errorf("mqtt = %+v", app.MQTT)
	}
}

func TestMalformedFileIsError(t *testing.T) {
	path := writeFile(t, "config.json", `{not json`)
	if _, err := Open(path); err == nil {
		t.Fatal("expected error")
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"auto": {"mode": 7},
		"calibration": {"min": 3, "max": 1, "volume": 100},
		"wifi": {"ap": {"ssid": "", "password": "short"}}
	}`)
	p, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	app := Load(p, logger.Nop())

	if app.Auto.Mode != automation.Off {
		t.Errorf("mode = %v, want OFF", app.Auto.Mode)
	}
	if err := app.Sensor.Validate(); err != nil {
		t.Errorf("calibration not replaced: %v", err)
	}
	if app.WiFi.APSSID != DefaultAPSSID || app.WiFi.APPassword != DefaultAPPassword {
		t.Errorf("ap = %q/%q", app.WiFi.APSSID, app.WiFi.APPassword)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("BYTELEVEL_MQTT_HOST", "env-broker")
	p := New()
	if got := p.String("mqtt.host"); got != "env-broker" {
		t.Errorf("mqtt.host = %q", got)
	}
}

func TestDurationAndSetSave(t *testing.T) {
	p := New()
	if got := p.Duration("auto.interval_ms"); got != time.Second {
		t.Errorf("duration = %v", got)
	}

	p.Set("auto.mode", 2)
	path := filepath.Join(t.TempDir(), "saved.json")
	if err := p.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Int("auto.mode") != 2 {
		t.Errorf("auto.mode = %d after reload", reloaded.Int("auto.mode"))
	}
	if reloaded.File() != path {
		t.Errorf("file = %q", reloaded.File())
	}
}
