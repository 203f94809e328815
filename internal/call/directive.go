package call

// Action is the kind of outbound directive the engine decided on.
type Action string

const (
	ActionSendDigits Action = "send_digits"
	ActionSpeak      Action = "speak"
	ActionListen     Action = "listen"
	ActionHangup     Action = "hangup"
)

// Directive is the engine's decision for the next outbound step. It is a
// pure return value; rendering it into the carrier's wire format is the
// transport adapter's job.
type Directive struct {
	Action Action `json:"action"`

	// Digits is set only for [ActionSendDigits].
	Digits string `json:"digits,omitempty"`

	// Text is set only for [ActionSpeak].
	Text string `json:"text,omitempty"`
}

// SendDigits returns a DTMF directive.
func SendDigits(digits string) Directive {
	return Directive{Action: ActionSendDigits, Digits: digits}
}

// Speak returns a text-to-speech directive.
func Speak(text string) Directive {
	return Directive{Action: ActionSpeak, Text: text}
}

// Listen returns a directive to keep listening without prompting.
func Listen() Directive {
	return Directive{Action: ActionListen}
}

// Hangup returns a directive to end the call.
func Hangup() Directive {
	return Directive{Action: ActionHangup}
}

// Describe returns a short transcript-friendly rendering of the directive.
func (d Directive) Describe() string {
	switch d.Action {
	case ActionSendDigits:
		return "sent digits " + d.Digits
	case ActionSpeak:
		return "spoke: " + d.Text
	case ActionListen:
		return "listening"
	case ActionHangup:
		return "hung up"
	}
	return string(d.Action)
}
