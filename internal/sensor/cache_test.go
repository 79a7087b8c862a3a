package sensor

import (
	"errors"
	"testing"
	"time"

	"github.com/Gamer08YT/ByteWaterlevel/internal/analog"
	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
)

const ms = time.Millisecond

// testConfig maps raw 0..1000 onto 0..1 V with a 0..1 V calibration, so the
// raw value in per mille equals the level in tenths of a percent.
func testConfig() Config {
	return Config{
		Calibration:      Calibration{MinVoltage: 0, MaxVoltage: 1, TankCapacity: 1000},
		ReferenceVoltage: 1,
		Resolution:       1000,
		Samples:          4,
		SampleDelay:      10 * ms,
		ScanInterval:     time.Second,
		ShuntOhms:        100,
	}
}

func newCache(t *testing.T, cfg Config, adc analog.Reader, thermo analog.Thermometer) (*Cache, *[]time.Duration) {
	t.Helper()
	var slept []time.Duration
	c, err := New(cfg, adc, thermo, logger.Nop(), WithSleep(func(d time.Duration) {
		slept = append(slept, d)
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, &slept
}

func TestNewRejectsInvalidCalibration(t *testing.T) {
	cfg := testConfig()
	cfg.MaxVoltage = cfg.MinVoltage
	_, err := New(cfg, analog.NewFakeReader(1), nil, logger.Nop())
	if !errors.Is(err, ErrInvalidCalibration) {
		t.Fatalf("expected ErrInvalidCalibration, got %v", err)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	cfg := Config{Calibration: Calibration{MinVoltage: 0, MaxVoltage: 3, TankCapacity: 100}, SampleDelay: -1}
	c, err := New(cfg, analog.NewFakeReader(1), nil, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := c.Config()
	if got.Samples != DefaultSamples || got.SampleDelay != DefaultSampleDelay ||
		got.ScanInterval != DefaultScanInterval || got.Resolution != DefaultResolution ||
		got.ReferenceVoltage != DefaultReferenceVoltage || got.ShuntOhms != DefaultShuntOhms {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestSampleRawAverages(t *testing.T) {
	adc := analog.NewFakeReader(100, 200, 300, 400)
	c, slept := newCache(t, testConfig(), adc, nil)

	v, err := c.SampleRaw()
	if err != nil {
		t.Fatalf("SampleRaw: %v", err)
	}
	if !approx(v, 0.25) {
		t.Errorf("voltage = %v, want 0.25", v)
	}
	if adc.Reads != 4 {
		t.Errorf("reads = %d, want 4", adc.Reads)
	}
	// No delay after the last conversion.
	if len(*slept) != 3 {
		t.Errorf("sleeps = %d, want 3", len(*slept))
	}
}

func TestSampleRawError(t *testing.T) {
	adc := analog.NewFakeReader(100)
	adc.ReadError = errors.New("io")
	c, _ := newCache(t, testConfig(), adc, nil)

	if _, err := c.SampleRaw(); err == nil {
		t.Fatal("expected error")
	}
}

func TestRefreshStoresDerivedValues(t *testing.T) {
	adc := analog.NewFakeReader(500)
	thermo := &analog.FakeThermometer{Value: 41.5}
	c, _ := newCache(t, testConfig(), adc, thermo)

	if c.Ready() {
		t.Fatal("ready before first refresh")
	}
	if err := c.Refresh(3 * time.Second); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	r := c.Snapshot()
	if !r.Valid || !c.Ready() {
		t.Fatal("reading not valid after refresh")
	}
	if !approx(r.Voltage, 0.5) {
		t.Errorf("voltage = %v, want 0.5", r.Voltage)
	}
	if !approx(r.Level, 50) || !approx(c.Level(), 50) {
		t.Errorf("level = %v, want 50", r.Level)
	}
	if !approx(r.Volume, 500) || !approx(c.Volume(), 500) {
		t.Errorf("volume = %v, want 500", r.Volume)
	}
	if !approx(r.Current, 5) || !approx(c.Current(), 5) {
		t.Errorf("current = %v mA, want 5", r.Current)
	}
	if r.Temperature != 41.5 || c.Temperature() != 41.5 {
		t.Errorf("temperature = %v, want 41.5", r.Temperature)
	}
	if r.UpdatedAt != 3*time.Second {
		t.Errorf("updated at = %v, want 3s", r.UpdatedAt)
	}
}

func TestThermometerErrorKeepsLastValue(t *testing.T) {
	thermo := &analog.FakeThermometer{Value: 30}
	c, _ := newCache(t, testConfig(), analog.NewFakeReader(500), thermo)

	if err := c.Refresh(0); err != nil {
		t.Fatal(err)
	}
	thermo.Err = errors.New("gone")
	if err := c.Refresh(time.Second); err != nil {
		t.Fatal(err)
	}
	if got := c.Temperature(); got != 30 {
		t.Errorf("temperature = %v, want 30 kept", got)
	}
}

func TestTickTakesOneSamplePerTick(t *testing.T) {
	adc := analog.NewFakeReader(400)
	c, _ := newCache(t, testConfig(), adc, nil)

	// First round starts immediately; one read per tick, 10ms apart.
	c.Tick(0)
	c.Tick(5 * ms) // too soon
	c.Tick(10 * ms)
	c.Tick(20 * ms)
	if adc.Reads != 3 {
		t.Fatalf("reads = %d, want 3", adc.Reads)
	}
	if c.Ready() {
		t.Fatal("committed before all samples")
	}

	c.Tick(30 * ms)
	if adc.Reads != 4 {
		t.Fatalf("reads = %d, want 4", adc.Reads)
	}
	r := c.Snapshot()
	if !r.Valid || !approx(r.Level, 40) {
		t.Fatalf("reading = %+v, want level 40", r)
	}
	if r.UpdatedAt != 30*ms {
		t.Errorf("updated at = %v, want 30ms", r.UpdatedAt)
	}
}

func TestTickWaitsForScanInterval(t *testing.T) {
	cfg := testConfig()
	cfg.Samples = 1
	adc := analog.NewFakeReader(100, 900)
	c, _ := newCache(t, cfg, adc, nil)

	c.Tick(0)
	if !approx(c.Level(), 10) {
		t.Fatalf("level = %v, want 10", c.Level())
	}

	c.Tick(999 * ms)
	if adc.Reads != 1 {
		t.Fatalf("sampled before scan interval: reads = %d", adc.Reads)
	}

	c.Tick(time.Second)
	if !approx(c.Level(), 90) {
		t.Fatalf("level = %v, want 90", c.Level())
	}
}

func TestTickReadErrorKeepsPreviousSnapshot(t *testing.T) {
	cfg := testConfig()
	cfg.Samples = 2
	adc := analog.NewFakeReader(600)
	c, _ := newCache(t, cfg, adc, nil)

	c.Tick(0)
	c.Tick(10 * ms)
	before := c.Snapshot()
	if !before.Valid {
		t.Fatal("expected first reading")
	}

	adc.ReadError = errors.New("io")
	c.Tick(2 * time.Second)
	if got := c.Snapshot(); got != before {
		t.Fatalf("snapshot changed on error: %+v", got)
	}

	// Retried after the next scan interval.
	adc.ReadError = nil
	c.Tick(2*time.Second + 500*ms)
	if adc.Reads != 3 {
		t.Fatalf("retried too early: reads = %d", adc.Reads)
	}
	c.Tick(3 * time.Second)
	c.Tick(3*time.Second + 10*ms)
	if got := c.Snapshot(); got.UpdatedAt != 3*time.Second+10*ms {
		t.Fatalf("no new reading after recovery: %+v", got)
	}
}

func TestDue(t *testing.T) {
	cfg := testConfig()
	cfg.Samples = 1
	c, _ := newCache(t, cfg, analog.NewFakeReader(1), nil)

	if !c.Due(0) {
		t.Fatal("should be due before first scan")
	}
	c.Tick(0)
	if c.Due(500 * ms) {
		t.Fatal("should not be due within interval")
	}
	if !c.Due(time.Second) {
		t.Fatal("should be due after interval")
	}
}
