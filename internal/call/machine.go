package call

import (
	"fmt"
	"time"

	"github.com/MrWong99/callyx/internal/extract"
	"github.com/MrWong99/callyx/internal/intent"
	"github.com/MrWong99/callyx/internal/normalize"
)

// NavigationPlan fixes the DTMF selectors used to steer the remote menu
// tree. The digits are remote-system specific and come from configuration.
type NavigationPlan struct {
	// SubmenuDigit selects the prior-authorization department from the
	// main menu.
	SubmenuDigit string

	// StatusDigit selects the status-check option inside the submenu.
	StatusDigit string
}

// DefaultNavigationPlan returns the selectors for the default remote menu.
func DefaultNavigationPlan() NavigationPlan {
	return NavigationPlan{SubmenuDigit: "2", StatusDigit: "1"}
}

// Turn is the outcome of processing one inbound event: the directive to
// render back to the carrier, and the terminal result when this turn ended
// the call.
type Turn struct {
	Directive Directive

	// Result is non-nil exactly when the session reached a terminal state
	// on this turn. The caller must retire the session and emit the result.
	Result *Result
}

// Machine computes state transitions for sessions. It is stateless apart
// from its policy and navigation plan and safe for concurrent use; all
// per-call mutable state lives in the [Session] it is handed.
type Machine struct {
	policy Policy
	nav    NavigationPlan
}

// NewMachine creates a [Machine] with the given retry policy and
// navigation plan.
func NewMachine(policy Policy, nav NavigationPlan) *Machine {
	return &Machine{policy: policy, nav: nav}
}

// Advance processes one classified turn. Every call appends at least one
// transcript entry before returning. rawText is the unnormalized utterance;
// extraction runs on it so free-text fields keep their original casing.
func (m *Machine) Advance(s *Session, cls intent.Classification, rawText string, now time.Time) Turn {
	if s.state.Terminal() {
		return Turn{Directive: Hangup()}
	}

	s.steps++
	s.lastEventAt = now

	bumped := false
	norm := normalize.Utterance(rawText)
	if norm != "" {
		s.append(SpeakerIVR, rawText, now)
		if s.observePrompt(normalize.PromptHash(norm)) {
			// The remote repeated itself verbatim, so the previous response
			// was not accepted. Counts against the uncertainty budget.
			s.append(SpeakerSystem, "remote repeated the previous prompt", now)
			bumped = true
			if exceeded, reason := m.policy.bump(s); exceeded {
				return m.fail(s, reason, now)
			}
		}
	}

	if cls.Confidence == intent.ConfidenceLow {
		return m.uncertain(s, bumped, now)
	}

	switch cls.Kind {
	case intent.KindResult:
		ext := extract.FromUtterance(rawText)
		outcome := OutcomeFound
		if !ext.Found {
			outcome = OutcomeNotFound
		}
		d := Hangup()
		s.append(SpeakerAgent, d.Describe(), now)
		s.append(SpeakerSystem, fmt.Sprintf("result captured, outcome %s", outcome), now)
		return Turn{Directive: d, Result: s.finish(StateComplete, outcome, "", ext, now)}

	case intent.KindGoodbye:
		d := Hangup()
		s.append(SpeakerAgent, d.Describe(), now)
		s.append(SpeakerSystem, "remote ended the call before a result", now)
		return Turn{Directive: d, Result: s.finish(StateFailed, OutcomeError, FailRemoteHangup, extract.Result{}, now)}

	case intent.KindNoSpeech:
		d := Listen()
		s.append(SpeakerAgent, d.Describe(), now)
		return Turn{Directive: d}

	case intent.KindMainMenu:
		if s.state != StateNavigatingMenu {
			return m.uncertain(s, bumped, now)
		}
		return Turn{Directive: m.act(s, SendDigits(m.nav.SubmenuDigit), StateInSubmenu, now)}

	case intent.KindSubmenu:
		if s.state != StateInSubmenu {
			return m.uncertain(s, bumped, now)
		}
		return Turn{Directive: m.act(s, SendDigits(m.nav.StatusDigit), StateProvidingInfo, now)}

	case intent.KindFieldRequest:
		if s.state != StateProvidingInfo {
			return m.uncertain(s, bumped, now)
		}
		return m.answerField(s, cls.Field, bumped, now)
	}

	return m.uncertain(s, bumped, now)
}

// answerField responds to an identity prompt from the stored caller
// identity. A prompt for a field the session does not hold is treated as an
// uncertain turn rather than a fault.
func (m *Machine) answerField(s *Session, field intent.Field, bumped bool, now time.Time) Turn {
	switch field {
	case intent.FieldMemberID:
		id := s.Identity.MemberID
		if id == "" {
			return m.uncertain(s, bumped, now)
		}
		if AllDigits(id) {
			return Turn{Directive: m.act(s, SendDigits(id), s.state, now)}
		}
		return Turn{Directive: m.act(s, Speak(SpellOut(id)), s.state, now)}

	case intent.FieldDateOfBirth:
		if digits, ok := s.Identity.DOBDigits(); ok {
			return Turn{Directive: m.act(s, SendDigits(digits), s.state, now)}
		}
		if s.Identity.DateOfBirth != "" {
			return Turn{Directive: m.act(s, Speak(s.Identity.DateOfBirth), s.state, now)}
		}
		return m.uncertain(s, bumped, now)

	case intent.FieldProcedureCode:
		code := s.Identity.ProcedureCode
		if code == "" {
			return m.uncertain(s, bumped, now)
		}
		// The procedure code is the last requested field; the next remote
		// utterance should be the result announcement.
		return Turn{Directive: m.act(s, SendDigits(code), StateWaitingResult, now)}
	}

	return m.uncertain(s, bumped, now)
}

// act appends the agent action to the transcript and transitions to next,
// noting the transition when the state actually changes.
func (m *Machine) act(s *Session, d Directive, next State, now time.Time) Directive {
	s.append(SpeakerAgent, d.Describe(), now)
	if next != s.state {
		s.state = next
		s.append(SpeakerSystem, fmt.Sprintf("entered %s", next), now)
	}
	return d
}

// uncertain routes a turn through the retry policy. alreadyBumped prevents
// double-counting when the repeated-prompt check charged this turn already.
func (m *Machine) uncertain(s *Session, alreadyBumped bool, now time.Time) Turn {
	if !alreadyBumped {
		if exceeded, reason := m.policy.bump(s); exceeded {
			return m.fail(s, reason, now)
		}
	}
	d := m.policy.retryDirective()
	s.append(SpeakerAgent, d.Describe(), now)
	s.append(SpeakerSystem, "low confidence, requesting repeat", now)
	return Turn{Directive: d}
}

// fail abandons the call after the uncertainty budget is spent.
func (m *Machine) fail(s *Session, reason FailureReason, now time.Time) Turn {
	d := Hangup()
	s.append(SpeakerAgent, d.Describe(), now)
	s.append(SpeakerSystem, fmt.Sprintf("abandoning call: %s", reason), now)
	return Turn{Directive: d, Result: s.finish(StateFailed, OutcomeError, reason, extract.Result{}, now)}
}

// Abort forces a non-terminal session to FAILED with the given outcome, for
// carrier-signaled teardown and the idle sweeper. Returns nil when the
// session is already terminal, which makes teardown idempotent.
func (m *Machine) Abort(s *Session, outcome Outcome, reason FailureReason, now time.Time) *Result {
	if s.state.Terminal() {
		return nil
	}
	s.append(SpeakerSystem, fmt.Sprintf("call aborted: %s", reason), now)
	return s.finish(StateFailed, outcome, reason, extract.Result{}, now)
}
