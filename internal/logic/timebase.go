package logic

import (
	"errors"
	"fmt"
	"time"
)

// Reference timing of the alarm board.
const (
	DefaultTickPeriod   = 20 * time.Millisecond
	DefaultSirenWarning = 3 * time.Second
	DefaultBlinkOnset   = 5 * time.Second

	// MinTickPeriod keeps one minute of ticks inside a 16-bit counter.
	MinTickPeriod = time.Millisecond
	// MaxTickPeriod is the quarter of the fastest blink period.
	MaxTickPeriod = expiredBlinkMs / 4 * time.Millisecond

	minuteMs       = 60000
	expiredBlinkMs = 500
	finalBlinkMs   = 1000
)

var (
	errTickOutOfRange   = fmt.Errorf("tick period must be between %v and %v", MinTickPeriod, MaxTickPeriod)
	errNegativeDuration = errors.New("durations must not be negative")
	errFractionalTick   = errors.New("tick period must be a whole number of milliseconds")
)

// Config holds the time base of the machine. All durations are converted to
// whole ticks before use.
type Config struct {
	TickPeriod   time.Duration
	SirenWarning time.Duration
	BlinkOnset   time.Duration
}

// DefaultConfig returns the reference 20ms time base.
func DefaultConfig() Config {
	return Config{
		TickPeriod:   DefaultTickPeriod,
		SirenWarning: DefaultSirenWarning,
		BlinkOnset:   DefaultBlinkOnset,
	}
}

// Validate checks that every duration converts to a tick count that fits the counter.
func (c Config) Validate() error {
	if c.TickPeriod < MinTickPeriod || c.TickPeriod > MaxTickPeriod {
		return errTickOutOfRange
	}
	if c.TickPeriod%time.Millisecond != 0 {
		return errFractionalTick
	}
	if c.SirenWarning < 0 || c.BlinkOnset < 0 {
		return errNegativeDuration
	}
	for _, d := range []time.Duration{c.SirenWarning, c.BlinkOnset} {
		if d/c.TickPeriod > 0xFFFF {
			return fmt.Errorf("duration %v exceeds %d ticks", d, 0xFFFF)
		}
	}
	return nil
}

func (c Config) tickMs() int {
	return int(c.TickPeriod / time.Millisecond)
}

// ticks converts d to whole ticks, truncating any remainder.
func (c Config) ticks(d time.Duration) uint16 {
	return uint16(int(d/time.Millisecond) / c.tickMs())
}

// MinuteTicks is one minute expressed in ticks.
func (c Config) MinuteTicks() uint16 {
	return uint16(minuteMs / c.tickMs())
}

// SirenTicks is the warning siren duration expressed in ticks.
func (c Config) SirenTicks() uint16 {
	return c.ticks(c.SirenWarning)
}

// resetCountdown loads one minute into the counter. Longer delays are counted
// in minute units so the 16-bit counter never overflows.
func (m *Machine) resetCountdown() {
	m.counter = m.minuteTicks
}
