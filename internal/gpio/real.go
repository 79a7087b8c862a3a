//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealOutput drives a line on actual hardware using the Linux GPIO character device.
type RealOutput struct {
	line   *gpiocdev.Line
	offset int
}

// NewRealOutput requests offset on chip as an output, initially inactive.
// With activeLow the kernel inverts the physical level, which suits the
// common opto-isolated relay boards that energise on a low input.
func NewRealOutput(chip string, offset int, activeLow bool) (*RealOutput, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0), gpiocdev.WithConsumer("bytelevel")}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request output pin %d on %s: %w", offset, chip, err)
	}

	return &RealOutput{line: line, offset: offset}, nil
}

// Set drives the logical line value.
func (o *RealOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set pin %d: %w", o.offset, err)
	}
	return nil
}

// Close drives the line inactive and returns it to an input with pull-down,
// matching the Pi boot default so relays stay released across a restart.
func (o *RealOutput) Close() error {
	if o.line == nil {
		return nil
	}

	var errs []error
	if err := o.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("release pin %d: %w", o.offset, err))
	}
	if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", o.offset, err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", o.offset, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
