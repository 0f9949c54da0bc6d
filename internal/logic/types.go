// Package logic contains the pure car-alarm state machine.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Sensor samples and their timestamps are always passed in via Input.
package logic

import "time"

// State is the active state of the alarm. Exactly one is active at any time.
type State uint8

const (
	// StateInvalid is never entered deliberately; any value outside the
	// defined set falls back to StateTriggered on the next tick.
	StateInvalid State = iota
	StateDisarmed
	// StateAwaitingIgnition is defined but no transition leads to it.
	StateAwaitingIgnition
	StateCountingDown
	StateCountdownExpired
	StateTriggered
	StateWarningSiren
)

var stateNames = map[State]string{
	StateDisarmed:         "DISARMED",
	StateAwaitingIgnition: "AWAITING_IGNITION",
	StateCountingDown:     "COUNTING_DOWN",
	StateCountdownExpired: "COUNTDOWN_EXPIRED",
	StateTriggered:        "TRIGGERED",
	StateWarningSiren:     "WARNING_SIREN",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Input is a single sample of every sensor, already in logical form
// (true = asserted) except the jumpers, which carry the raw line level.
type Input struct {
	Door      bool
	SecretKey bool
	Ignition  bool
	Debug     bool
	Jumper1   bool
	Jumper2   bool
	Time      time.Time
}

// Outputs are the actuator levels the machine wants driven.
type Outputs struct {
	LED   bool
	Siren bool
	Relay bool
}

// Event records a change of state.
type Event struct {
	Timestamp time.Time
	From      State
	To        State
	ArmDelay  int // minutes selected by the jumpers at the time of the change
	Outputs   Outputs
}

// EntryCounts tracks how often each state was entered since boot.
type EntryCounts struct {
	Disarmed         int
	CountingDown     int
	CountdownExpired int
	WarningSiren     int
	Triggered        int
}

// Snapshot is a point-in-time view of the machine.
type Snapshot struct {
	State    State
	Counter  uint16
	ArmDelay int
	Outputs  Outputs
	Counts   EntryCounts
}
