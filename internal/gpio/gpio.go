// Package gpio provides the sensor and actuator facade with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Device reads the alarm sensors and drives its outputs.
type Device interface {
	// Read samples every input line. Door, SecretKey, Ignition and Debug are
	// active-low on the board and returned as true when asserted. Jumpers are
	// returned as raw levels (true = high = jumper open).
	Read() (Sample, error)

	// Write drives the output lines.
	Write(levels Levels) error

	// Close drives all outputs low and releases GPIO resources.
	// Calls after the first do nothing.
	Close() error
}

// Sample is a single reading of every input line.
type Sample struct {
	Door      bool
	SecretKey bool
	Ignition  bool
	Debug     bool
	Jumper1   bool
	Jumper2   bool
}

// Levels are the output line levels, true = high.
type Levels struct {
	LED   bool
	Siren bool
	Relay bool
}

// Pins maps each alarm function to a line offset on the chip (BCM numbering on a Pi).
type Pins struct {
	Door      int
	SecretKey int
	Ignition  int
	Debug     int
	Jumper1   int
	Jumper2   int
	LED       int
	Siren     int
	Relay     int
}

// Default pin and chip assignment.
const (
	DefaultChip = "gpiochip0"

	DefaultPinDoor      = 17
	DefaultPinSecretKey = 27
	DefaultPinIgnition  = 22
	DefaultPinDebug     = 23
	DefaultPinJumper1   = 5
	DefaultPinJumper2   = 6
	DefaultPinLED       = 13
	DefaultPinSiren     = 19
	DefaultPinRelay     = 26
)

// DefaultPins returns the reference wiring.
func DefaultPins() Pins {
	return Pins{
		Door:      DefaultPinDoor,
		SecretKey: DefaultPinSecretKey,
		Ignition:  DefaultPinIgnition,
		Debug:     DefaultPinDebug,
		Jumper1:   DefaultPinJumper1,
		Jumper2:   DefaultPinJumper2,
		LED:       DefaultPinLED,
		Siren:     DefaultPinSiren,
		Relay:     DefaultPinRelay,
	}
}

// Offsets returns every pin in a fixed order: sensors, jumpers, outputs.
func (p Pins) Offsets() []int {
	return []int{p.Door, p.SecretKey, p.Ignition, p.Debug, p.Jumper1, p.Jumper2, p.LED, p.Siren, p.Relay}
}

func boolToLevel(b bool) int {
	if b {
		return 1
	}
	return 0
}
