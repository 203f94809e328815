package call

import (
	"time"

	"github.com/MrWong99/callyx/internal/extract"
	"github.com/MrWong99/callyx/internal/intent"
)

// Session is one in-progress navigation attempt. It is created on first
// contact for an unseen call ID and destroyed on the terminal transition.
//
// Session carries no lock of its own; the owning registry guarantees that
// at most one goroutine touches a session at a time.
type Session struct {
	// CallID is the carrier-assigned identifier, the registry key.
	CallID string

	// Identity is filled from the carrier's setup parameters and consulted
	// when the remote system asks for a field.
	Identity CallerIdentity

	state      State
	transcript []TranscriptEntry
	steps      int

	menuRetries    int
	infoRetries    int
	uncertainTotal int

	lastPromptHash uint64
	promptRepeats  int

	counted bool

	startedAt   time.Time
	lastEventAt time.Time
}

// NewSession creates a session in [StateNavigatingMenu].
func NewSession(callID string, identity CallerIdentity, now time.Time) *Session {
	return &Session{
		CallID:      callID,
		Identity:    identity,
		state:       StateNavigatingMenu,
		startedAt:   now,
		lastEventAt: now,
	}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Steps returns the number of turns processed so far.
func (s *Session) Steps() int {
	return s.steps
}

// StartedAt returns the session creation time.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// LastEventAt returns the time of the most recent inbound event. The idle
// sweeper uses it to detect silently abandoned calls.
func (s *Session) LastEventAt() time.Time {
	return s.lastEventAt
}

// View projects the session into the classifier's read-only context.
func (s *Session) View(digitsPresent bool) intent.Context {
	return intent.Context{
		Navigating:    s.state == StateNavigatingMenu,
		IdentityKnown: s.Identity.Partial(),
		FirstTurn:     s.steps == 0,
		DigitsPresent: digitsPresent,
	}
}

// CountOnce reports true exactly once per session. The engine uses it to
// keep the active-calls gauge balanced when the setup message and the first
// event race to create the session.
func (s *Session) CountOnce() bool {
	if s.counted {
		return false
	}
	s.counted = true
	return true
}

// Transcript returns a copy of the transcript so far.
func (s *Session) Transcript() []TranscriptEntry {
	out := make([]TranscriptEntry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// append adds one transcript entry. The transcript is append-only; entries
// are never mutated or removed.
func (s *Session) append(speaker Speaker, text string, at time.Time) {
	s.transcript = append(s.transcript, TranscriptEntry{Speaker: speaker, Text: text, At: at})
}

// observePrompt records the fingerprint of the latest non-empty prompt and
// reports whether the remote system repeated the previous prompt verbatim.
// A repeated prompt means the engine's last response was not accepted.
func (s *Session) observePrompt(hash uint64) (repeated bool) {
	if hash == 0 {
		return false
	}
	repeated = s.lastPromptHash == hash
	s.lastPromptHash = hash
	if repeated {
		s.promptRepeats++
	} else {
		s.promptRepeats = 0
	}
	return repeated
}

// finish moves the session to a terminal state and builds its result.
func (s *Session) finish(state State, outcome Outcome, reason FailureReason, ext extract.Result, now time.Time) *Result {
	s.state = state
	return &Result{
		CallID:         s.CallID,
		Outcome:        outcome,
		AuthNumber:     ext.AuthNumber,
		DecisionStatus: ext.Status,
		ValidThrough:   ext.ValidThrough,
		DenialReason:   ext.DenialReason,
		FailureReason:  reason,
		Transcript:     s.Transcript(),
		StartedAt:      s.startedAt,
		EndedAt:        now,
		DurationSec:    now.Sub(s.startedAt).Seconds(),
	}
}
