//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "car-alarm"

// RealDevice drives actual hardware using Linux GPIO character device.
type RealDevice struct {
	chip    *gpiocdev.Chip
	sensors *gpiocdev.Lines // door, secret key, ignition, debug
	jumpers *gpiocdev.Lines // jumper1, jumper2
	outputs *gpiocdev.Lines // led, siren, relay

	closeOnce sync.Once
	closeErr  error
}

// NewRealDevice requests all alarm lines on the named chip.
func NewRealDevice(chipName string, pins Pins) (*RealDevice, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	d := &RealDevice{chip: chip}

	// Sensors switch to ground, so pull up and invert.
	d.sensors, err = chip.RequestLines(
		[]int{pins.Door, pins.SecretKey, pins.Ignition, pins.Debug},
		gpiocdev.AsInput, gpiocdev.AsActiveLow, gpiocdev.WithPullUp)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("request sensor pins: %w", err)
	}

	// Jumpers are read as raw levels: fitted = low.
	d.jumpers, err = chip.RequestLines(
		[]int{pins.Jumper1, pins.Jumper2},
		gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("request jumper pins: %w", err)
	}

	d.outputs, err = chip.RequestLines(
		[]int{pins.LED, pins.Siren, pins.Relay},
		gpiocdev.AsOutput(0, 0, 0))
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("request output pins: %w", err)
	}

	return d, nil
}

// Read returns the logical sensor states and raw jumper levels.
func (d *RealDevice) Read() (Sample, error) {
	sensors := make([]int, 4)
	if err := d.sensors.Values(sensors); err != nil {
		return Sample{}, fmt.Errorf("read sensor pins: %w", err)
	}

	jumpers := make([]int, 2)
	if err := d.jumpers.Values(jumpers); err != nil {
		return Sample{}, fmt.Errorf("read jumper pins: %w", err)
	}

	return Sample{
		Door:      sensors[0] == 1,
		SecretKey: sensors[1] == 1,
		Ignition:  sensors[2] == 1,
		Debug:     sensors[3] == 1,
		Jumper1:   jumpers[0] == 1,
		Jumper2:   jumpers[1] == 1,
	}, nil
}

// Write drives the LED, siren and relay lines.
func (d *RealDevice) Write(levels Levels) error {
	values := []int{boolToLevel(levels.LED), boolToLevel(levels.Siren), boolToLevel(levels.Relay)}
	if err := d.outputs.SetValues(values); err != nil {
		return fmt.Errorf("write output pins: %w", err)
	}
	return nil
}

// Close drives the outputs low and releases GPIO resources. Only the first
// call has any effect.
func (d *RealDevice) Close() error {
	d.closeOnce.Do(func() { d.closeErr = d.release() })
	return d.closeErr
}

// release reconfigures the outputs to input with pull-down before closing
// them so the siren and relay stay off while the device reboots.
func (d *RealDevice) release() error {
	var errs []error

	if d.outputs != nil {
		if err := d.outputs.SetValues([]int{0, 0, 0}); err != nil {
			errs = append(errs, fmt.Errorf("clear outputs: %w", err))
		}
		if err := d.outputs.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure outputs: %w", err))
		}
		if err := d.outputs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close outputs: %w", err))
		}
	}
	if d.jumpers != nil {
		if err := d.jumpers.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close jumpers: %w", err))
		}
	}
	if d.sensors != nil {
		if err := d.sensors.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sensors: %w", err))
		}
	}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
