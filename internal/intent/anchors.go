package intent

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// AnchorMatcher tests whether an anchor keyword is present in an utterance,
// tolerating speech-to-text noise.
//
// A literal substring match always wins. For single-word anchors with no
// literal match, each token of the utterance is compared phonetically: a
// Double Metaphone code overlap combined with a Jaro-Winkler score at or
// above the phonetic threshold counts as a match, as does a plain
// Jaro-Winkler score at or above the stricter fuzzy threshold. Multi-word
// anchors match literally only; phrase-level phonetic matching produces too
// many false positives on short menu prompts.
//
// All methods are safe for concurrent use; the matcher is read-only after
// construction.
type AnchorMatcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// MatcherOption is a functional option for configuring an [AnchorMatcher].
type MatcherOption func(*AnchorMatcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-overlapping token to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) MatcherOption {
	return func(m *AnchorMatcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic overlap exists. Default: 0.85.
func WithFuzzyThreshold(threshold float64) MatcherOption {
	return func(m *AnchorMatcher) {
		m.fuzzyThreshold = threshold
	}
}

// NewMatcher returns an [AnchorMatcher] configured with the supplied options.
func NewMatcher(opts ...MatcherOption) *AnchorMatcher {
	m := &AnchorMatcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Has reports whether anchor is present in the normalized text, literally or
// (for single-word anchors) phonetically.
func (m *AnchorMatcher) Has(text, anchor string) bool {
	if anchor == "" || text == "" {
		return false
	}
	if strings.Contains(text, anchor) {
		return true
	}
	if strings.ContainsRune(anchor, ' ') {
		return false
	}

	anchorPrimary, anchorSecondary := matchr.DoubleMetaphone(anchor)
	for _, token := range strings.Fields(text) {
		score := matchr.JaroWinkler(token, anchor, false)
		if score >= m.fuzzyThreshold {
			return true
		}
		if score >= m.phoneticThreshold && codesOverlap(token, anchorPrimary, anchorSecondary) {
			return true
		}
	}
	return false
}

// HasAny reports whether any of the anchors is present, returning the first
// one found.
func (m *AnchorMatcher) HasAny(text string, anchors ...string) (string, bool) {
	for _, a := range anchors {
		if m.Has(text, a) {
			return a, true
		}
	}
	return "", false
}

// codesOverlap reports whether token shares a Double Metaphone code with the
// anchor's primary or secondary code. Empty codes never overlap.
func codesOverlap(token, anchorPrimary, anchorSecondary string) bool {
	p, s := matchr.DoubleMetaphone(token)
	for _, code := range []string{p, s} {
		if code == "" {
			continue
		}
		if code == anchorPrimary || (anchorSecondary != "" && code == anchorSecondary) {
			return true
		}
	}
	return false
}
