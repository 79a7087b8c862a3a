// Package sensor samples the analog level sensor and keeps calibrated
// readings cached for cheap reuse by the web and telemetry surfaces.
//
// Sampling methods (Tick, Refresh, SampleRaw) belong to the control loop
// goroutine. The cached accessors are safe to call from any goroutine and
// never touch hardware.
package sensor

import (
	"fmt"
	"sync"
	"time"

	"github.com/Gamer08YT/ByteWaterlevel/internal/analog"
	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
)

// Config describes the sensor hardware and sampling policy.
type Config struct {
	Calibration

	ReferenceVoltage float64       // ADC full-scale voltage
	Resolution       float64       // raw value at full scale
	Samples          int           // conversions averaged per reading
	SampleDelay      time.Duration // spacing between conversions
	ScanInterval     time.Duration // time between readings
	ShuntOhms        float64       // current loop shunt resistor
}

// Defaults for the zero fields of Config.
const (
	DefaultReferenceVoltage = 3.3
	DefaultResolution       = 4095
	DefaultSamples          = 10
	DefaultSampleDelay      = 10 * time.Millisecond
	DefaultScanInterval     = time.Second
	DefaultShuntOhms        = 150
)

func (c *Config) applyDefaults() {
	if c.ReferenceVoltage <= 0 {
		c.ReferenceVoltage = DefaultReferenceVoltage
	}
	if c.Resolution <= 0 {
		c.Resolution = DefaultResolution
	}
	if c.Samples <= 0 {
		c.Samples = DefaultSamples
	}
	if c.SampleDelay < 0 {
		c.SampleDelay = DefaultSampleDelay
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = DefaultScanInterval
	}
	if c.ShuntOhms <= 0 {
		c.ShuntOhms = DefaultShuntOhms
	}
}

// Reading is one calibrated snapshot. It is a value type.
type Reading struct {
	Voltage     float64       // averaged sensor voltage
	Level       float64       // percent, 0..100
	Volume      float64       // litres
	Current     float64       // loop current in mA
	Temperature float64       // device temperature in °C
	UpdatedAt   time.Duration // clock time of the refresh
	Valid       bool          // false until the first refresh
}

// round accumulates the conversions of one non-blocking reading.
type round struct {
	active     bool
	sum        int
	n          int
	lastSample time.Duration
}

// Cache samples the sensor and serves the last reading.
type Cache struct {
	cfg    Config
	adc    analog.Reader
	thermo analog.Thermometer
	log    *logger.Logger
	sleep  func(time.Duration)

	scanned  bool
	lastScan time.Duration
	round    round

	mu      sync.RWMutex
	reading Reading
}

// Option customises a Cache.
type Option func(*Cache)

// WithSleep replaces time.Sleep in SampleRaw.
func WithSleep(fn func(time.Duration)) Option {
	return func(c *Cache) { c.sleep = fn }
}

// New creates a Cache. thermo may be nil when the board has no thermal zone.
func New(cfg Config, adc analog.Reader, thermo analog.Thermometer, log *logger.Logger, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	c := &Cache{
		cfg:    cfg,
		adc:    adc,
		thermo: thermo,
		log:    log,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Cache) Config() Config {
	return c.cfg
}

// SampleRaw takes Samples conversions SampleDelay apart and returns their mean
// as a voltage. It blocks for up to Samples × SampleDelay.
func (c *Cache) SampleRaw() (float64, error) {
	sum := 0
	for i := 0; i < c.cfg.Samples; i++ {
		raw, err := c.adc.ReadRaw()
		if err != nil {
			return 0, fmt.Errorf("sample %d: %w", i, err)
		}
		sum += raw
		if i < c.cfg.Samples-1 && c.cfg.SampleDelay > 0 {
			c.sleep(c.cfg.SampleDelay)
		}
	}
	return c.toVoltage(float64(sum) / float64(c.cfg.Samples)), nil
}

// Refresh synchronously samples the sensor and stores a new reading.
func (c *Cache) Refresh(now time.Duration) error {
	v, err := c.SampleRaw()
	if err != nil {
		return err
	}
	c.commit(v, now)
	return nil
}

// Due reports whether a new reading should be started at now.
func (c *Cache) Due(now time.Duration) bool {
	return !c.scanned || now-c.lastScan >= c.cfg.ScanInterval
}

// Tick advances the non-blocking sampler: at most one conversion per call,
// SampleDelay apart, committing a reading after Samples conversions.
func (c *Cache) Tick(now time.Duration) {
	if !c.round.active {
		if !c.Due(now) {
			return
		}
		c.round = round{active: true}
	} else if now-c.round.lastSample < c.cfg.SampleDelay {
		return
	}

	raw, err := c.adc.ReadRaw()
	if err != nil {
		c.log.Warnw("sensor_sample_failed", "err", err, "collected", c.round.n)
		c.round = round{}
		c.scanned = true
		c.lastScan = now
		return
	}

	c.round.sum += raw
	c.round.n++
	c.round.lastSample = now
	if c.round.n < c.cfg.Samples {
		return
	}

	mean := float64(c.round.sum) / float64(c.round.n)
	c.round = round{}
	c.commit(c.toVoltage(mean), now)
}

func (c *Cache) toVoltage(raw float64) float64 {
	return raw * c.cfg.ReferenceVoltage / c.cfg.Resolution
}

func (c *Cache) commit(voltage float64, now time.Duration) {
	level := c.cfg.Level(voltage)

	c.mu.RLock()
	temperature := c.reading.Temperature
	c.mu.RUnlock()
	if c.thermo != nil {
		if t, err := c.thermo.Celsius(); err == nil {
			temperature = t
		} else {
			c.log.Debugw("sensor_temperature_failed", "err", err)
		}
	}

	r := Reading{
		Voltage:     voltage,
		Level:       level,
		Volume:      c.cfg.Volume(level),
		Current:     voltage / c.cfg.ShuntOhms * 1000,
		Temperature: temperature,
		UpdatedAt:   now,
		Valid:       true,
	}

	c.mu.Lock()
	c.reading = r
	c.mu.Unlock()

	c.scanned = true
	c.lastScan = now
}

// Snapshot returns the last reading.
func (c *Cache) Snapshot() Reading {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reading
}

// Ready reports whether at least one reading has been stored.
func (c *Cache) Ready() bool {
	return c.Snapshot().Valid
}

// Level returns the cached level in percent.
func (c *Cache) Level() float64 { return c.Snapshot().Level }

// Volume returns the cached volume in litres.
func (c *Cache) Volume() float64 { return c.Snapshot().Volume }

// Current returns the cached loop current in mA.
func (c *Cache) Current() float64 { return c.Snapshot().Current }

// Temperature returns the cached device temperature in °C.
func (c *Cache) Temperature() float64 { return c.Snapshot().Temperature }

// Voltage returns the cached sensor voltage.
func (c *Cache) Voltage() float64 { return c.Snapshot().Voltage }
