package intent

// Rule pairs a [Kind] with a predicate over the normalized utterance and the
// session view. Rules are evaluated in declared order; the first rule whose
// Match returns ok wins.
type Rule struct {
	// Kind tags the classification this rule produces.
	Kind Kind

	// Name is a human-readable label for logging and tests.
	Name string

	// Match tests the rule. When ok is true, cls is the full classification
	// including matched anchors and confidence.
	Match func(text string, ctx Context) (cls Classification, ok bool)
}

// Classifier evaluates an ordered rule table against normalized utterances.
// It is stateless and safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// Option is a functional option for configuring a [Classifier].
type Option func(*Classifier)

// WithRules replaces the built-in rule table. The final fallback rule is
// always appended so classification can never come up empty.
func WithRules(rules []Rule) Option {
	return func(c *Classifier) {
		c.rules = rules
	}
}

// New returns a [Classifier] with the built-in rule table, matching anchors
// through the given [AnchorMatcher].
func New(m *AnchorMatcher, opts ...Option) *Classifier {
	c := &Classifier{rules: defaultRules(m)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify runs the rule table over the normalized text. It always returns a
// classification; when no rule matches, the fallback rule fires with low
// confidence. Unmatched input is a first-class outcome, never an error.
func (c *Classifier) Classify(text string, ctx Context) Classification {
	for _, r := range c.rules {
		if cls, ok := r.Match(text, ctx); ok {
			return cls
		}
	}
	return Classification{Kind: KindFallback, Confidence: ConfidenceLow}
}

// defaultRules returns the built-in rule table in evaluation order. The
// result rule is first: result utterances often contain menu-like fragments
// and must never be misread as prompts.
func defaultRules(m *AnchorMatcher) []Rule {
	return []Rule{
		{
			Kind: KindResult,
			Name: "result-announcement",
			Match: func(text string, _ Context) (Classification, bool) {
				if !m.Has(text, "authorization") {
					return Classification{}, false
				}
				status, ok := m.HasAny(text, "approved", "denied", "pending", "not found", "expired")
				if !ok {
					return Classification{}, false
				}
				return Classification{
					Kind:       KindResult,
					Anchors:    []string{"authorization", status},
					Confidence: ConfidenceHigh,
				}, true
			},
		},
		{
			Kind: KindSubmenu,
			Name: "status-submenu",
			Match: func(text string, _ Context) (Classification, bool) {
				if !m.Has(text, "status") || !m.Has(text, "press 1") {
					return Classification{}, false
				}
				anchors := []string{"status", "press 1"}
				conf := ConfidenceLow
				if dept, ok := m.HasAny(text, "existing authorization", "prior authorization"); ok {
					anchors = append(anchors, dept)
					conf = ConfidenceHigh
				}
				return Classification{Kind: KindSubmenu, Anchors: anchors, Confidence: conf}, true
			},
		},
		{
			Kind: KindMainMenu,
			Name: "main-menu-greeting",
			Match: func(text string, ctx Context) (Classification, bool) {
				if !ctx.Navigating {
					return Classification{}, false
				}
				var anchors []string
				for _, a := range []string{"thank you for calling", "insurance", "prior authorization"} {
					if m.Has(text, a) {
						anchors = append(anchors, a)
					}
				}
				// All three anchors must corroborate for a confident match;
				// two of three still fires, but only at low confidence, so a
				// garbled greeting routes through the retry policy.
				switch len(anchors) {
				case 3:
					return Classification{Kind: KindMainMenu, Anchors: anchors, Confidence: ConfidenceHigh}, true
				case 2:
					return Classification{Kind: KindMainMenu, Anchors: anchors, Confidence: ConfidenceLow}, true
				}
				return Classification{}, false
			},
		},
		{
			Kind: KindFieldRequest,
			Name: "field-request",
			Match: func(text string, ctx Context) (Classification, bool) {
				if !ctx.IdentityKnown {
					return Classification{}, false
				}
				type fieldAnchor struct {
					field   Field
					anchors []string
				}
				for _, fa := range []fieldAnchor{
					{FieldMemberID, []string{"member id", "member identification"}},
					{FieldDateOfBirth, []string{"date of birth"}},
					{FieldProcedureCode, []string{"procedure code", "cpt"}},
				} {
					if a, ok := m.HasAny(text, fa.anchors...); ok {
						return Classification{
							Kind:       KindFieldRequest,
							Field:      fa.field,
							Anchors:    []string{a},
							Confidence: ConfidenceHigh,
						}, true
					}
				}
				return Classification{}, false
			},
		},
		{
			Kind: KindGoodbye,
			Name: "goodbye",
			Match: func(text string, _ Context) (Classification, bool) {
				if !m.Has(text, "goodbye") {
					return Classification{}, false
				}
				return Classification{
					Kind:       KindGoodbye,
					Anchors:    []string{"goodbye"},
					Confidence: ConfidenceHigh,
				}, true
			},
		},
		{
			Kind: KindNoSpeech,
			Name: "no-speech-yet",
			Match: func(text string, ctx Context) (Classification, bool) {
				if text != "" || !ctx.FirstTurn {
					return Classification{}, false
				}
				return Classification{Kind: KindNoSpeech, Confidence: ConfidenceHigh}, true
			},
		},
	}
}
