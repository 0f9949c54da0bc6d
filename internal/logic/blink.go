package logic

// BlinkLevel reports the LED level for a blink of periodMs at the given counter.
// The period is split in four phase units and the LED is lit for the first one,
// a 1/4 duty cycle. boundary is false when counter is inside a phase unit, in
// which case the LED must keep its current level.
func BlinkLevel(counter uint16, periodMs, tickMs int) (on, boundary bool) {
	if tickMs <= 0 {
		return false, false
	}
	unit := uint16(periodMs / 4 / tickMs)
	if unit == 0 || counter%unit != 0 {
		return false, false
	}
	return (counter/unit)%4 == 0, true
}

func (m *Machine) blink(periodMs int) {
	if on, ok := BlinkLevel(m.counter, periodMs, m.tickMs); ok {
		m.out.LED = on
	}
}
