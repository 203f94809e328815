// Package normalize prepares raw IVR speech transcriptions for
// classification and extraction.
//
// Normalization is pure and idempotent: lowercase, strip the sentence
// punctuation that speech-to-text engines insert, collapse whitespace runs.
// It never drops words, digits, or hyphens, so downstream extraction patterns
// see the utterance content unchanged.
package normalize

import (
	"hash/fnv"
	"strings"
)

// Utterance normalizes a raw transcription: lowercased, with the characters
// ',', '.', '!', '?' removed and all whitespace runs collapsed to single
// spaces. Leading and trailing whitespace is trimmed. The empty string maps
// to the empty string. Applying Utterance to its own output is a no-op.
func Utterance(raw string) string {
	lowered := strings.ToLower(raw)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch r {
		case ',', '.', '!', '?':
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// PromptHash returns a stable fingerprint of a normalized prompt, used to
// detect the remote system repeating the same prompt verbatim. Two prompts
// that normalize identically hash identically.
func PromptHash(normalized string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(normalized))
	return h.Sum64()
}
