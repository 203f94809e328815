// Package extract pulls structured authorization data out of free-form IVR
// result announcements.
//
// Patterns are deliberately tolerant: speech recognition splits codes into
// spaced digit groups, inserts ordinal suffixes into dates, and varies
// punctuation freely. Each sub-field is extracted independently; a missing
// sub-field is a partial result, never an error. An utterance with no
// authorization number yields no actionable result regardless of any status
// words it contains.
package extract

import (
	"regexp"
	"strings"
)

// Status is the decision status announced by the remote system.
type Status string

const (
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusPending  Status = "pending"
	StatusExpired  Status = "expired"
)

// IsValid reports whether s is a recognised decision status.
func (s Status) IsValid() bool {
	switch s {
	case StatusApproved, StatusDenied, StatusPending, StatusExpired:
		return true
	}
	return false
}

// Result holds the fields extracted from one result announcement. Fields are
// optional; only Found is always meaningful.
type Result struct {
	// Found is true when an authorization number was extracted. A status
	// without an identifying number is not actionable.
	Found bool

	// AuthNumber is the authorization code with internal whitespace and
	// hyphens stripped, upper-cased (e.g. "PA202478432").
	AuthNumber string

	// Status is the decision status, when announced.
	Status Status

	// ValidThrough is the validity date phrase, extracted only for approved
	// results, with ordinal suffixes and trailing punctuation stripped.
	ValidThrough string

	// DenialReason is the verbatim free-text reason, extracted only for
	// denied results. Denial reasons have no stable grammar; no structural
	// parsing is attempted.
	DenialReason string
}

var (
	// Codes arrive as "PA2024-78432", "PA 2024 78432", or "pa-2024-78432"
	// depending on how the speech service segmented the audio. An optional
	// short letter prefix followed by digit groups separated by spaces or
	// hyphens covers the observed variants.
	authNumberRe = regexp.MustCompile(`(?i)\bauthorization\b(?:\s+number)?(?:\s+is)?\s+((?:[a-z]{1,4}[-\s]?)?\d[\d\s-]*\d|\d)`)

	// "through June 30th, 2024" or "through 06/30/2024". The capture stops
	// at sentence boundaries the normalizer may not have removed.
	validThroughRe = regexp.MustCompile(`(?i)\bthrough\s+([a-z]+\s+\d{1,2}(?:st|nd|rd|th)?,?\s*\d{4}|\d{1,2}/\d{1,2}/\d{2,4})`)

	// "reason: conservative treatment not attempted" — everything up to the
	// next sentence break.
	denialReasonRe = regexp.MustCompile(`(?i)\breason\b[:\s]+([^.!?\n]+)`)

	ordinalSuffixRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)\b`)
	codeSepRe       = regexp.MustCompile(`[\s-]+`)
)

// statusOrder is the tie-break order when an utterance mentions several
// status words; the first present wins.
var statusOrder = []Status{StatusApproved, StatusDenied, StatusPending, StatusExpired}

// FromUtterance extracts all sub-fields from a result announcement. The
// input may be raw or normalized text; matching is case-insensitive either
// way. Sub-fields that fail to match are simply left unset.
func FromUtterance(text string) Result {
	var res Result

	if m := authNumberRe.FindStringSubmatch(text); m != nil {
		res.AuthNumber = strings.ToUpper(codeSepRe.ReplaceAllString(strings.TrimSpace(m[1]), ""))
		res.Found = res.AuthNumber != ""
	}
	if !res.Found {
		return Result{}
	}

	lower := strings.ToLower(text)
	for _, s := range statusOrder {
		if strings.Contains(lower, string(s)) {
			res.Status = s
			break
		}
	}
	if res.Status == "" && strings.Contains(lower, "not found") {
		// "not found" announcements carry a number but no decision; the
		// caller maps an empty status to a not-found outcome.
		return Result{}
	}

	switch res.Status {
	case StatusApproved:
		if m := validThroughRe.FindStringSubmatch(text); m != nil {
			res.ValidThrough = cleanDate(m[1])
		}
	case StatusDenied:
		res.DenialReason = denialReason(text)
	}

	return res
}

// cleanDate strips ordinal suffixes and stray punctuation from a spoken date
// phrase: "June 30th, 2024" becomes "June 30 2024".
func cleanDate(date string) string {
	date = ordinalSuffixRe.ReplaceAllString(date, "$1")
	date = strings.ReplaceAll(date, ",", "")
	return strings.Join(strings.Fields(date), " ")
}

// denialReason returns the free-text reason clause. A "reason:" marker is
// preferred; otherwise the remainder of the utterance after the decision
// word is retained verbatim.
func denialReason(text string) string {
	if m := denialReasonRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	lower := strings.ToLower(text)
	if i := strings.Index(lower, string(StatusDenied)); i >= 0 {
		rest := strings.TrimSpace(text[i+len(StatusDenied):])
		rest = strings.TrimLeft(rest, ".!? ")
		if rest != "" {
			return rest
		}
	}
	return ""
}
