package call

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/callyx/internal/intent"
)

var testIdentity = CallerIdentity{
	MemberID:      "M123456789",
	DateOfBirth:   "1985-03-15",
	ProcedureCode: "73721",
}

func newTestMachine() *Machine {
	return NewMachine(DefaultPolicy(), DefaultNavigationPlan())
}

func high(kind intent.Kind) intent.Classification {
	return intent.Classification{Kind: kind, Confidence: intent.ConfidenceHigh}
}

func highField(f intent.Field) intent.Classification {
	return intent.Classification{Kind: intent.KindFieldRequest, Field: f, Confidence: intent.ConfidenceHigh}
}

func low() intent.Classification {
	return intent.Classification{Kind: intent.KindFallback, Confidence: intent.ConfidenceLow}
}

// walkToProvidingInfo advances a fresh session through the menu states.
func walkToProvidingInfo(t *testing.T, m *Machine, s *Session, now time.Time) {
	t.Helper()
	m.Advance(s, high(intent.KindMainMenu), "thank you for calling acme insurance prior authorization press 2", now)
	m.Advance(s, high(intent.KindSubmenu), "to check the status of an existing authorization press 1", now)
	if got := s.State(); got != StateProvidingInfo {
		t.Fatalf("state after menu walk = %s, want %s", got, StateProvidingInfo)
	}
}

func TestAdvanceHappyPath(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	m := newTestMachine()
	s := NewSession("CA123", testIdentity, now)

	steps := []struct {
		cls       intent.Classification
		text      string
		wantState State
		wantDir   Directive
	}{
		{
			cls:       high(intent.KindNoSpeech),
			text:      "",
			wantState: StateNavigatingMenu,
			wantDir:   Listen(),
		},
		{
			cls:       high(intent.KindMainMenu),
			text:      "Thank you for calling Acme Insurance. For prior authorization, press 2.",
			wantState: StateInSubmenu,
			wantDir:   SendDigits("2"),
		},
		{
			cls:       high(intent.KindSubmenu),
			text:      "To check the status of an existing authorization, press 1.",
			wantState: StateProvidingInfo,
			wantDir:   SendDigits("1"),
		},
		{
			cls:       highField(intent.FieldMemberID),
			text:      "Please say or enter your member ID.",
			wantState: StateProvidingInfo,
			wantDir:   Speak("M 1 2 3 4 5 6 7 8 9"),
		},
		{
			cls:       highField(intent.FieldDateOfBirth),
			text:      "Enter the member's date of birth.",
			wantState: StateProvidingInfo,
			wantDir:   SendDigits("03151985"),
		},
		{
			cls:       highField(intent.FieldProcedureCode),
			text:      "Enter the procedure code.",
			wantState: StateWaitingResult,
			wantDir:   SendDigits("73721"),
		},
	}

	lastLen := 0
	for i, st := range steps {
		turn := m.Advance(s, st.cls, st.text, now.Add(time.Duration(i)*time.Second))
		if turn.Result != nil {
			t.Fatalf("step %d: unexpected terminal result", i)
		}
		if turn.Directive != st.wantDir {
			t.Errorf("step %d: directive = %+v, want %+v", i, turn.Directive, st.wantDir)
		}
		if s.State() != st.wantState {
			t.Errorf("step %d: state = %s, want %s", i, s.State(), st.wantState)
		}
		if l := len(s.Transcript()); l <= lastLen {
			t.Errorf("step %d: transcript did not grow (%d -> %d)", i, lastLen, l)
		} else {
			lastLen = l
		}
	}

	end := now.Add(30 * time.Second)
	turn := m.Advance(s, high(intent.KindResult),
		"Your authorization PA2024-78432 is approved through June 30th, 2024.", end)

	if turn.Directive.Action != ActionHangup {
		t.Errorf("final directive = %+v, want hangup", turn.Directive)
	}
	res := turn.Result
	if res == nil {
		t.Fatal("expected terminal result")
	}
	if res.Outcome != OutcomeFound {
		t.Errorf("Outcome = %s, want %s", res.Outcome, OutcomeFound)
	}
	if res.AuthNumber != "PA202478432" {
		t.Errorf("AuthNumber = %q, want PA202478432", res.AuthNumber)
	}
	if res.ValidThrough != "June 30 2024" {
		t.Errorf("ValidThrough = %q, want %q", res.ValidThrough, "June 30 2024")
	}
	if s.State() != StateComplete {
		t.Errorf("state = %s, want %s", s.State(), StateComplete)
	}
	if res.DurationSec != 30 {
		t.Errorf("DurationSec = %v, want 30", res.DurationSec)
	}
}

func TestAdvanceGoodbyeBeforeResult(t *testing.T) {
	t.Parallel()

	now := time.Now()
	m := newTestMachine()
	s := NewSession("CA200", testIdentity, now)
	walkToProvidingInfo(t, m, s, now)

	turn := m.Advance(s, high(intent.KindGoodbye), "thank you goodbye", now)
	if turn.Result == nil {
		t.Fatal("expected terminal result")
	}
	if turn.Result.Outcome != OutcomeError {
		t.Errorf("Outcome = %s, want %s", turn.Result.Outcome, OutcomeError)
	}
	if turn.Result.FailureReason != FailRemoteHangup {
		t.Errorf("FailureReason = %s, want %s", turn.Result.FailureReason, FailRemoteHangup)
	}
	if s.State() != StateFailed {
		t.Errorf("state = %s, want %s", s.State(), StateFailed)
	}
}

func TestAdvanceResultWithoutNumberIsNotFound(t *testing.T) {
	t.Parallel()

	now := time.Now()
	m := newTestMachine()
	s := NewSession("CA201", testIdentity, now)

	turn := m.Advance(s, high(intent.KindResult),
		"The authorization you requested was not found in our system.", now)
	if turn.Result == nil {
		t.Fatal("expected terminal result")
	}
	if turn.Result.Outcome != OutcomeNotFound {
		t.Errorf("Outcome = %s, want %s", turn.Result.Outcome, OutcomeNotFound)
	}
	if turn.Result.AuthNumber != "" {
		t.Errorf("AuthNumber = %q, want empty", turn.Result.AuthNumber)
	}
}

func TestAdvanceLowConfidenceBounds(t *testing.T) {
	t.Parallel()

	t.Run("info retries exhaust within budget", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		m := newTestMachine()
		s := NewSession("CA300", testIdentity, now)
		walkToProvidingInfo(t, m, s, now)

		var res *Result
		turns := 0
		for i := 0; res == nil && i < 6; i++ {
			turns++
			// Distinct garbled prompts, so only the low-confidence path
			// charges the budget.
			turn := m.Advance(s, low(), "garbled prompt variant "+strings.Repeat("x", i+1), now)
			res = turn.Result
		}
		if res == nil {
			t.Fatal("session never failed within 6 low-confidence turns")
		}
		if turns != 2 {
			t.Errorf("failed after %d turns, want 2 (info max)", turns)
		}
		if res.Outcome != OutcomeError {
			t.Errorf("Outcome = %s, want %s", res.Outcome, OutcomeError)
		}
		if res.FailureReason != FailInfoProvision {
			t.Errorf("FailureReason = %s, want %s", res.FailureReason, FailInfoProvision)
		}
	})

	t.Run("menu retries send the repeat digit first", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		m := newTestMachine()
		s := NewSession("CA301", testIdentity, now)

		turn := m.Advance(s, low(), "static noise", now)
		if turn.Result != nil {
			t.Fatal("first low-confidence turn must not abort the call")
		}
		if want := SendDigits("9"); turn.Directive != want {
			t.Errorf("directive = %+v, want %+v", turn.Directive, want)
		}

		turn = m.Advance(s, low(), "more static noise", now)
		if turn.Result != nil {
			t.Fatal("second low-confidence turn must not abort the call")
		}
		turn = m.Advance(s, low(), "even more static noise", now)
		if turn.Result == nil {
			t.Fatal("third low-confidence menu turn should exhaust the budget")
		}
		if turn.Result.FailureReason != FailMenuNavigation {
			t.Errorf("FailureReason = %s, want %s", turn.Result.FailureReason, FailMenuNavigation)
		}
		if turn.Directive.Action != ActionHangup {
			t.Errorf("directive = %+v, want hangup", turn.Directive)
		}
	})
}

func TestAdvanceRepeatedPromptChargesBudget(t *testing.T) {
	t.Parallel()

	now := time.Now()
	m := newTestMachine()
	s := NewSession("CA302", testIdentity, now)
	walkToProvidingInfo(t, m, s, now)

	prompt := "Please say or enter your member ID."
	turn := m.Advance(s, highField(intent.FieldMemberID), prompt, now)
	if turn.Result != nil {
		t.Fatal("first prompt must not be counted as a repeat")
	}

	// Identical prompt again: the previous answer was not accepted.
	turn = m.Advance(s, highField(intent.FieldMemberID), prompt, now)
	if turn.Result != nil {
		t.Fatal("one repeat should stay within the info budget")
	}
	noted := false
	for _, e := range s.Transcript() {
		if e.Speaker == SpeakerSystem && strings.Contains(e.Text, "repeated") {
			noted = true
		}
	}
	if !noted {
		t.Error("repeated prompt was not noted in the transcript")
	}

	turn = m.Advance(s, highField(intent.FieldMemberID), prompt, now)
	if turn.Result == nil {
		t.Fatal("second repeat should exhaust the info budget")
	}
	if turn.Result.FailureReason != FailInfoProvision {
		t.Errorf("FailureReason = %s, want %s", turn.Result.FailureReason, FailInfoProvision)
	}
}

func TestAdvanceIntentInWrongStateRoutesThroughPolicy(t *testing.T) {
	t.Parallel()

	now := time.Now()
	m := newTestMachine()
	s := NewSession("CA303", testIdentity, now)

	// A submenu prompt while still navigating the main menu is not
	// actionable; the engine asks for a repeat instead of pressing digits.
	turn := m.Advance(s, high(intent.KindSubmenu), "to check a status press 1", now)
	if turn.Result != nil {
		t.Fatal("unexpected terminal result")
	}
	if turn.Directive.Action == ActionSendDigits && turn.Directive.Digits == "1" {
		t.Error("submenu selector sent while not in submenu")
	}
	if s.State() != StateNavigatingMenu {
		t.Errorf("state = %s, want %s", s.State(), StateNavigatingMenu)
	}
}

func TestAdvanceTerminalSessionIsInert(t *testing.T) {
	t.Parallel()

	now := time.Now()
	m := newTestMachine()
	s := NewSession("CA304", testIdentity, now)
	m.Advance(s, high(intent.KindGoodbye), "goodbye", now)

	before := len(s.Transcript())
	turn := m.Advance(s, high(intent.KindResult), "authorization PA1-2 approved", now)
	if turn.Result != nil {
		t.Error("terminal session must not produce a second result")
	}
	if turn.Directive.Action != ActionHangup {
		t.Errorf("directive = %+v, want hangup", turn.Directive)
	}
	if got := len(s.Transcript()); got != before {
		t.Errorf("transcript grew on a terminal session (%d -> %d)", before, got)
	}
}

func TestAbort(t *testing.T) {
	t.Parallel()

	now := time.Now()
	m := newTestMachine()
	s := NewSession("CA305", testIdentity, now)

	res := m.Abort(s, OutcomeTimeout, FailIdleTimeout, now)
	if res == nil {
		t.Fatal("expected result from aborting an active session")
	}
	if res.Outcome != OutcomeTimeout || res.FailureReason != FailIdleTimeout {
		t.Errorf("got outcome %s / reason %s", res.Outcome, res.FailureReason)
	}

	if again := m.Abort(s, OutcomeTimeout, FailIdleTimeout, now); again != nil {
		t.Error("aborting a terminal session must be a no-op")
	}
}

func TestCallerIdentity(t *testing.T) {
	t.Parallel()

	if digits, ok := testIdentity.DOBDigits(); !ok || digits != "03151985" {
		t.Errorf("DOBDigits() = %q, %v, want 03151985, true", digits, ok)
	}
	if _, ok := (CallerIdentity{DateOfBirth: "March 15"}).DOBDigits(); ok {
		t.Error("malformed date of birth should not convert")
	}

	if got := SpellOut("A1B2"); got != "A 1 B 2" {
		t.Errorf("SpellOut = %q", got)
	}
	if !AllDigits("0123456789") {
		t.Error("AllDigits should accept a numeric identifier")
	}
	if AllDigits("M123") || AllDigits("") {
		t.Error("AllDigits should reject letters and empty strings")
	}

	if (CallerIdentity{}).Partial() {
		t.Error("empty identity should not be partial")
	}
	if !(CallerIdentity{ProcedureCode: "73721"}).Partial() {
		t.Error("identity with one field should be partial")
	}
}
