package call

// Policy bounds how long a call may stay ambiguous before the engine gives
// up. A single low-confidence turn must never abort a call; persistent
// inability to classify must not loop forever either.
type Policy struct {
	// MaxMenuRetries bounds low-confidence turns while navigating menus
	// (states NAVIGATING_MENU and IN_SUBMENU).
	MaxMenuRetries int

	// MaxInfoRetries bounds low-confidence turns while providing identity
	// information.
	MaxInfoRetries int

	// MaxUncertainTotal bounds low-confidence turns across the whole call,
	// regardless of state.
	MaxUncertainTotal int

	// RepeatDigit, when non-empty, is sent as DTMF to ask the remote menu
	// to repeat itself instead of silently listening again.
	RepeatDigit string
}

// DefaultPolicy returns the standard retry bounds.
func DefaultPolicy() Policy {
	return Policy{
		MaxMenuRetries:    3,
		MaxInfoRetries:    2,
		MaxUncertainTotal: 5,
		RepeatDigit:       "9",
	}
}

// bump increments the uncertainty counter relevant to the session's state
// plus the call-wide total, and reports whether a bound was exceeded. When
// exceeded, reason names the counter that tripped.
func (p Policy) bump(s *Session) (exceeded bool, reason FailureReason) {
	s.uncertainTotal++

	switch s.state {
	case StateNavigatingMenu, StateInSubmenu:
		s.menuRetries++
		if s.menuRetries >= p.MaxMenuRetries {
			return true, FailMenuNavigation
		}
	case StateProvidingInfo:
		s.infoRetries++
		if s.infoRetries >= p.MaxInfoRetries {
			return true, FailInfoProvision
		}
	}

	if s.uncertainTotal > p.MaxUncertainTotal {
		return true, FailMaxUncertainty
	}
	return false, ""
}

// retryDirective is the action taken when a bound has not been hit yet.
func (p Policy) retryDirective() Directive {
	if p.RepeatDigit != "" {
		return SendDigits(p.RepeatDigit)
	}
	return Listen()
}
