package logic

// DelayMinutes maps the two configuration jumper levels to the arming delay.
//
//	jumper1 jumper2 minutes
//	low     low     1
//	low     high    3
//	high    low     5
//	high    high    10
func DelayMinutes(jumper1, jumper2 bool) int {
	switch {
	case !jumper1 && !jumper2:
		return 1
	case !jumper1:
		return 3
	case !jumper2:
		return 5
	default:
		return 10
	}
}

func (m *Machine) determineDelay() {
	m.armDelay = DelayMinutes(m.in.Jumper1, m.in.Jumper2)
	m.resetCountdown()
}
