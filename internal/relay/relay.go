// Package relay owns the two timed output channels of the appliance:
// channel 1 drives the fill pump, channel 2 the drain pump.
//
// The Controller is not safe for concurrent use. It belongs to the control
// loop goroutine; other goroutines submit commands through the loop.
package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/Gamer08YT/ByteWaterlevel/internal/clock"
	"github.com/Gamer08YT/ByteWaterlevel/internal/gpio"
	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
)

// Channel identifiers.
const (
	ChannelFill = 1
	ChannelPump = 2

	channelCount = 2
)

// ErrInvalidChannel is returned for any channel id other than 1 or 2.
var ErrInvalidChannel = errors.New("relay: invalid channel")

// Change describes an output transition.
type Change struct {
	Channel int
	On      bool
	At      time.Duration
	// Expired is true when the transition was caused by an auto-off timer.
	Expired bool
}

// channel holds the state of one output.
type channel struct {
	out       gpio.Output
	on        bool
	timed     bool
	expiresAt time.Duration
}

// Controller drives the relay outputs and their auto-off timers.
type Controller struct {
	clock    clock.Clock
	log      *logger.Logger
	channels [channelCount]channel
	onChange func(Change)
}

// New creates a Controller for the fill and pump outputs. Both start off.
func New(clk clock.Clock, log *logger.Logger, fill, pump gpio.Output) *Controller {
	c := &Controller{clock: clk, log: log}
	c.channels[0].out = fill
	c.channels[1].out = pump
	return c
}

// OnChange registers fn to be called after every output transition.
func (c *Controller) OnChange(fn func(Change)) {
	c.onChange = fn
}

func (c *Controller) channel(id int) (*channel, error) {
	if id < 1 || id > channelCount {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannel, id)
	}
	return &c.channels[id-1], nil
}

// Set drives channel id immediately and cancels any pending auto-off.
// A manual Set always overrides a timer.
func (c *Controller) Set(id int, on bool) error {
	ch, err := c.channel(id)
	if err != nil {
		return err
	}
	ch.timed = false
	return c.write(id, ch, on, false, c.clock.Now())
}

// SetTimed schedules channel id to switch off d from now. The current
// output is left alone; pair it with Set(id, true) for a timed run.
func (c *Controller) SetTimed(id int, d time.Duration) error {
	ch, err := c.channel(id)
	if err != nil {
		return err
	}
	ch.timed = true
	ch.expiresAt = c.clock.Now() + d
	return nil
}

// Tick switches off every channel whose timer has expired at now.
// A failed hardware write keeps the timer armed so the next tick retries.
func (c *Controller) Tick(now time.Duration) {
	for i := range c.channels {
		ch := &c.channels[i]
		if !ch.timed || now < ch.expiresAt {
			continue
		}
		if err := c.write(i+1, ch, false, true, now); err != nil {
			c.log.Errorw("relay_auto_off_failed", "channel", i+1, "err", err)
			continue
		}
		ch.timed = false
	}
}

// State reports the output of channel id.
func (c *Controller) State(id int) (bool, error) {
	ch, err := c.channel(id)
	if err != nil {
		return false, err
	}
	return ch.on, nil
}

// Remaining reports the time left before channel id auto-switches off.
// It is zero when no timer is armed or it has already elapsed.
func (c *Controller) Remaining(id int, now time.Duration) (time.Duration, error) {
	ch, err := c.channel(id)
	if err != nil {
		return 0, err
	}
	if !ch.timed || now >= ch.expiresAt {
		return 0, nil
	}
	return ch.expiresAt - now, nil
}

// Close releases both outputs. The gpio implementation drives them inactive.
func (c *Controller) Close() error {
	var errs []error
	for i := range c.channels {
		ch := &c.channels[i]
		if ch.out == nil {
			continue
		}
		if err := ch.out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) write(id int, ch *channel, on, expired bool, at time.Duration) error {
	if err := ch.out.Set(on); err != nil {
		return fmt.Errorf("channel %d: %w", id, err)
	}
	if ch.on == on {
		return nil
	}
	ch.on = on
	c.log.Infow("relay_changed", "channel", id, "on", on, "expired", expired)
	if c.onChange != nil {
		c.onChange(Change{Channel: id, On: on, At: at, Expired: expired})
	}
	return nil
}
