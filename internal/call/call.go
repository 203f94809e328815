// Package call owns the per-call navigation state: the session record, the
// state machine that turns classified intents into outbound directives, and
// the retry policy that bounds how long a call may stay ambiguous.
//
// A [Session] is not self-locking. The registry in internal/engine
// serializes all access per call; within that serialization the state
// machine is purely computational and performs no I/O.
package call

import (
	"strings"
	"time"

	"github.com/MrWong99/callyx/internal/extract"
)

// State is the position of a call in the navigation flow.
type State string

const (
	// StateNavigatingMenu is the initial state: listening for the top-level
	// greeting menu.
	StateNavigatingMenu State = "NAVIGATING_MENU"

	// StateInSubmenu means the submenu selector was sent and the engine is
	// listening for the status-check submenu.
	StateInSubmenu State = "IN_SUBMENU"

	// StateProvidingInfo means the engine is answering identity prompts.
	StateProvidingInfo State = "PROVIDING_INFO"

	// StateWaitingResult means all identity fields were provided and the
	// engine awaits the result announcement.
	StateWaitingResult State = "WAITING_RESULT"

	// StateComplete is terminal: a result announcement was processed.
	StateComplete State = "COMPLETE"

	// StateFailed is terminal: the call was abandoned without a usable result.
	StateFailed State = "FAILED"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Outcome is the overall verdict of a finished call.
type Outcome string

const (
	// OutcomeFound means an authorization number was extracted.
	OutcomeFound Outcome = "found"

	// OutcomeNotFound means a result announcement was heard but carried no
	// actionable authorization number.
	OutcomeNotFound Outcome = "not_found"

	// OutcomeError means the call failed before any result was captured.
	OutcomeError Outcome = "error"

	// OutcomeTimeout means the call was abandoned, idle-swept, or torn down
	// by the carrier before completing.
	OutcomeTimeout Outcome = "timeout"
)

// FailureReason is the machine-readable reason attached to error and
// timeout outcomes.
type FailureReason string

const (
	FailMaxUncertainty FailureReason = "max_uncertainty"
	FailMenuNavigation FailureReason = "menu_navigation_failed"
	FailInfoProvision  FailureReason = "info_provision_failed"
	FailRemoteHangup   FailureReason = "remote_hangup"
	FailCarrierError   FailureReason = "carrier_error"
	FailIdleTimeout    FailureReason = "idle_timeout"
)

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	// SpeakerIVR is the remote phone system.
	SpeakerIVR Speaker = "ivr"

	// SpeakerAgent is this engine's outbound action.
	SpeakerAgent Speaker = "agent"

	// SpeakerSystem marks internal notes such as state transitions.
	SpeakerSystem Speaker = "system"
)

// TranscriptEntry is one line of a call's append-only transcript.
type TranscriptEntry struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// CallerIdentity holds the fields the remote system asks for, filled from
// the carrier's setup parameters.
type CallerIdentity struct {
	// MemberID is the caller's identifier, possibly alphanumeric.
	MemberID string `json:"member_id"`

	// DateOfBirth is formatted YYYY-MM-DD.
	DateOfBirth string `json:"date_of_birth"`

	// ProcedureCode is the CPT procedure code under inquiry.
	ProcedureCode string `json:"procedure_code"`
}

// Partial reports whether at least one identity field is known.
func (c CallerIdentity) Partial() bool {
	return c.MemberID != "" || c.DateOfBirth != "" || c.ProcedureCode != ""
}

// DOBDigits reformats DateOfBirth from YYYY-MM-DD to the MMDDYYYY keypad
// form. ok is false when the stored value does not parse.
func (c CallerIdentity) DOBDigits() (digits string, ok bool) {
	t, err := time.Parse("2006-01-02", c.DateOfBirth)
	if err != nil {
		return "", false
	}
	return t.Format("01022006"), true
}

// SpellOut renders an identifier as space-separated characters so a speech
// synthesizer reads it character by character ("A B 1 2") instead of as a
// word or a large number.
func SpellOut(s string) string {
	fields := make([]string, 0, len(s))
	for _, r := range s {
		fields = append(fields, string(r))
	}
	return strings.Join(fields, " ")
}

// AllDigits reports whether s is non-empty and consists only of '0'-'9'.
// All-digit identifiers are sent as DTMF; anything else must be spoken.
func AllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Result is the terminal output of a session, emitted exactly once to the
// result sink when the call reaches a terminal state.
type Result struct {
	CallID         string            `json:"call_id"`
	Outcome        Outcome           `json:"outcome"`
	AuthNumber     string            `json:"authorization_number,omitempty"`
	DecisionStatus extract.Status    `json:"decision_status,omitempty"`
	ValidThrough   string            `json:"valid_through,omitempty"`
	DenialReason   string            `json:"denial_reason,omitempty"`
	FailureReason  FailureReason     `json:"failure_reason,omitempty"`
	Transcript     []TranscriptEntry `json:"transcript"`
	StartedAt      time.Time         `json:"started_at"`
	EndedAt        time.Time         `json:"ended_at"`
	DurationSec    float64           `json:"duration_seconds"`
}
