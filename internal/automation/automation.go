// Package automation keeps the tank between configured levels by driving the
// fill and pump channels with simple hysteresis.
package automation

import (
	"errors"
	"fmt"
	"time"

	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
	"github.com/Gamer08YT/ByteWaterlevel/internal/relay"
)

// ErrUnknownMode is returned by ParseMode for values outside 0..2.
var ErrUnknownMode = errors.New("automation: unknown mode")

// Mode selects which policies run.
type Mode int

const (
	Off Mode = iota
	FillAndPump
	FillOnly
)

func (m Mode) String() string {
	switch m {
	case Off:
		return "OFF"
	case FillAndPump:
		return "FILL_AND_PUMP"
	case FillOnly:
		return "FILL_ONLY"
	default:
		return "UNKNOWN"
	}
}

// ParseMode maps the configured integer onto a Mode.
func ParseMode(v int) (Mode, error) {
	switch Mode(v) {
	case Off, FillAndPump, FillOnly:
		return Mode(v), nil
	default:
		return Off, fmt.Errorf("%w: %d", ErrUnknownMode, v)
	}
}

// DefaultInterval is the minimum time between two automation runs.
const DefaultInterval = time.Second

// Config holds the thresholds in percent.
type Config struct {
	Mode      Mode
	MaxLevel  float64 // fill stops at or above this level
	MinLevel  float64 // pump runs above this level
	FillLevel float64 // fill starts at or below this level
	Interval  time.Duration
}

// Relays is the part of the relay controller automation drives.
type Relays interface {
	Set(id int, on bool) error
}

// LevelSource provides the cached tank level.
type LevelSource interface {
	Level() float64
	Ready() bool
}

// Controller applies the fill and pump policies.
type Controller struct {
	cfg    Config
	relays Relays
	level  LevelSource
	log    *logger.Logger

	ran     bool
	lastRun time.Duration
	filling bool
	pumping bool
}

// New creates a Controller.
func New(cfg Config, relays Relays, level LevelSource, log *logger.Logger) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Mode != Off && cfg.FillLevel > cfg.MaxLevel {
		log.Warnw("automation_fill_above_max", "fill", cfg.FillLevel, "max", cfg.MaxLevel)
	}
	return &Controller{cfg: cfg, relays: relays, level: level, log: log}
}

// Tick runs the policies when the interval has elapsed.
func (c *Controller) Tick(now time.Duration) {
	if c.ran && now-c.lastRun < c.cfg.Interval {
		return
	}
	if c.cfg.Mode == Off {
		return
	}
	if !c.level.Ready() {
		return
	}
	c.ran = true
	c.lastRun = now

	level := c.level.Level()
	switch c.cfg.Mode {
	case FillAndPump:
		c.fill(level)
		c.pump(level)
	case FillOnly:
		c.fill(level)
	}
}

func (c *Controller) fill(level float64) {
	switch {
	case level >= c.cfg.MaxLevel:
		c.command(relay.ChannelFill, false, &c.filling, level)
	case !c.filling && level <= c.cfg.FillLevel:
		c.command(relay.ChannelFill, true, &c.filling, level)
	}
}

func (c *Controller) pump(level float64) {
	c.command(relay.ChannelPump, level > c.cfg.MinLevel, &c.pumping, level)
}

func (c *Controller) command(id int, on bool, flag *bool, level float64) {
	if err := c.relays.Set(id, on); err != nil {
		c.log.Errorw("automation_relay_failed", "channel", id, "on", on, "err", err)
		return
	}
	if *flag != on {
		c.log.Infow("automation_changed", "channel", id, "on", on, "level", level)
	}
	*flag = on
}

// Mode returns the configured mode.
func (c *Controller) Mode() Mode { return c.cfg.Mode }

// Config returns the effective configuration.
func (c *Controller) Config() Config { return c.cfg }

// IsFilling reports whether automation last commanded the fill channel on.
func (c *Controller) IsFilling() bool { return c.filling }

// IsPumping reports whether automation last commanded the pump channel on.
func (c *Controller) IsPumping() bool { return c.pumping }
