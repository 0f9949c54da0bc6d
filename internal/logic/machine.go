package logic

import "fmt"

// Machine is the alarm controller. It is driven by calling Step once per tick
// and is not safe for concurrent use.
type Machine struct {
	tickMs      int
	minuteTicks uint16
	sirenTicks  uint16
	onsetTicks  uint16

	state State
	// trans is set by transition and cleared by the state that consumes it.
	trans bool
	// counter is the tick countdown; its meaning depends on the state.
	counter  uint16
	armDelay int
	out      Outputs
	in       Input

	counts  EntryCounts
	pending []Event
}

// NewMachine reads the arming delay from the jumpers in the boot sample and
// starts in StateTriggered, so a power cycle never leaves the car unprotected.
func NewMachine(cfg Config, boot Input) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid time base: %w", err)
	}

	m := &Machine{
		tickMs:      cfg.tickMs(),
		minuteTicks: cfg.MinuteTicks(),
		sirenTicks:  cfg.SirenTicks(),
		onsetTicks:  cfg.ticks(cfg.BlinkOnset),
		in:          boot,
	}
	m.determineDelay()
	m.transition(StateTriggered)
	m.pending = nil
	return m, nil
}

// Step evaluates the current state against one sensor sample and returns the
// outputs to drive. The secret key is checked after every state and always wins.
func (m *Machine) Step(in Input) Outputs {
	m.in = in

	switch m.state {
	case StateWarningSiren:
		if m.trans {
			m.trans = false
			m.counter = m.sirenTicks
		}
		if m.counter > 0 {
			m.counter--
		}
		if m.counter > 0 {
			m.out.Siren = true
			m.out.LED = false
		} else {
			// Cut the engine.
			m.setAlarm(true)
		}

	case StateTriggered:
		// Re-asserted every tick so the relay follows the ignition.
		m.setAlarm(true)

	case StateCountdownExpired:
		m.counter++
		m.blink(expiredBlinkMs)
		if in.Ignition {
			m.transition(StateWarningSiren)
		}

	case StateDisarmed:
		if in.Door {
			m.out.LED = false
			m.determineDelay()
			m.transition(StateCountingDown)
		}

	case StateCountingDown:
		if m.counter > 0 {
			m.counter--
		}
		if m.counter == 0 {
			m.armDelay--
			if m.armDelay > 0 {
				m.resetCountdown()
			} else {
				m.transition(StateCountdownExpired)
			}
		} else if m.counter < m.onsetTicks && m.armDelay == 1 {
			// Last seconds of the last minute.
			m.blink(finalBlinkMs)
		}

	default:
		// StateAwaitingIgnition and any corrupt value fail towards armed.
		m.transition(StateTriggered)
	}

	if in.SecretKey {
		m.setAlarm(false)
	}

	return m.out
}

// setAlarm enters StateTriggered with the siren on and the relay following
// the ignition, or StateDisarmed with everything off and the LED steady.
func (m *Machine) setAlarm(on bool) {
	if on {
		m.out = Outputs{LED: false, Siren: true, Relay: m.in.Ignition}
		m.transition(StateTriggered)
		return
	}
	m.out = Outputs{LED: true, Siren: false, Relay: false}
	m.transition(StateDisarmed)
}

func (m *Machine) transition(next State) {
	m.trans = true
	if next == m.state {
		return
	}

	m.pending = append(m.pending, Event{
		Timestamp: m.in.Time,
		From:      m.state,
		To:        next,
		ArmDelay:  m.armDelay,
		Outputs:   m.out,
	})
	switch next {
	case StateDisarmed:
		m.counts.Disarmed++
	case StateCountingDown:
		m.counts.CountingDown++
	case StateCountdownExpired:
		m.counts.CountdownExpired++
	case StateWarningSiren:
		m.counts.WarningSiren++
	case StateTriggered:
		m.counts.Triggered++
	}
	m.state = next
}

// Transitions returns the state changes since the previous call.
func (m *Machine) Transitions() []Event {
	events := m.pending
	m.pending = nil
	return events
}

// State returns the active state.
func (m *Machine) State() State {
	return m.state
}

// Outputs returns the currently latched output levels.
func (m *Machine) Outputs() Outputs {
	return m.out
}

// ArmDelay returns the arming delay in minutes, counting down while armed.
func (m *Machine) ArmDelay() int {
	return m.armDelay
}

// Snapshot returns a copy of the machine's observable state.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		State:    m.state,
		Counter:  m.counter,
		ArmDelay: m.armDelay,
		Outputs:  m.out,
		Counts:   m.counts,
	}
}
