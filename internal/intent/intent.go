// Package intent classifies normalized IVR utterances into a closed set of
// recognized intents using an ordered table of typed predicate rules.
//
// Rule order is fixed and significant: the result-announcement rule runs
// before any menu rule because result utterances routinely contain fragments
// ("press 1", "for status") that would otherwise misclassify as fresh menu
// prompts. Each rule is a pure predicate over the normalized text and a
// read-only view of the session; the first rule that fires wins.
//
// Anchor keyword matching tolerates speech-to-text noise: single-word
// anchors fall back to Double Metaphone phonetic overlap ranked by
// Jaro-Winkler similarity when no literal substring match is found.
package intent

// Kind identifies which rule of the classifier fired.
type Kind string

const (
	// KindResult is a result announcement carrying a decision status.
	KindResult Kind = "result"

	// KindSubmenu is a recognized sub-menu prompt (status-check menu).
	KindSubmenu Kind = "submenu"

	// KindMainMenu is the top-level greeting menu. Only recognized while the
	// session is still navigating from the initial state.
	KindMainMenu Kind = "main_menu"

	// KindFieldRequest is a prompt asking for one caller identity field.
	KindFieldRequest Kind = "field_request"

	// KindGoodbye is a farewell from the remote system, recognized in any state.
	KindGoodbye Kind = "goodbye"

	// KindNoSpeech is the first turn of a call before the remote side has
	// spoken. Distinct from a turn where the remote said nothing useful.
	KindNoSpeech Kind = "no_speech"

	// KindFallback is the terminal catch-all: nothing matched, keep listening.
	KindFallback Kind = "fallback"
)

// Field names the caller identity field a [KindFieldRequest] prompt asks for.
type Field string

const (
	FieldMemberID      Field = "member_id"
	FieldDateOfBirth   Field = "date_of_birth"
	FieldProcedureCode Field = "procedure_code"
)

// Confidence is the classifier's self-assessed certainty. Low-confidence
// classifications are routed through the retry policy by the state machine
// instead of being acted on directly.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Classification is the ephemeral output of one classifier pass.
type Classification struct {
	// Kind is the rule that fired.
	Kind Kind

	// Field is set only when Kind is [KindFieldRequest].
	Field Field

	// Anchors lists the anchor keywords that corroborated the match,
	// in rule-declared order. Useful for logging and tests.
	Anchors []string

	// Confidence is high when the rule's full anchor set matched, low when
	// the rule fired on a partial set or the fallback rule fired.
	Confidence Confidence
}

// Context is the read-only session view the classifier consults. It keeps
// the classifier decoupled from the session type: callers project whatever
// session state the rules need into this struct.
type Context struct {
	// Navigating is true while the session is still in its initial
	// menu-navigation state. Gates the main-menu rule.
	Navigating bool

	// IdentityKnown is true when the session holds at least a partial caller
	// identity. Gates the field-request rules.
	IdentityKnown bool

	// FirstTurn is true when the turn counter is zero. Gates the
	// no-speech rule.
	FirstTurn bool

	// DigitsPresent is true when the inbound event carried DTMF digits
	// alongside or instead of speech.
	DigitsPresent bool
}
