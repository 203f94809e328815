package normalize

import "testing"

func TestUtterance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercases and strips punctuation",
			in:   "Your authorization PA2024-78432 has been APPROVED.",
			want: "your authorization pa2024-78432 has been approved",
		},
		{
			name: "collapses whitespace runs",
			in:   "press   1\tfor\n\nstatus",
			want: "press 1 for status",
		},
		{
			name: "keeps hyphens and digits",
			in:   "PA-2024-78432, valid through June 30!",
			want: "pa-2024-78432 valid through june 30",
		},
		{
			name: "question and exclamation marks removed",
			in:   "Did you say that?!",
			want: "did you say that",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
		{
			name: "whitespace only",
			in:   "   \t\n ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Utterance(tt.in); got != tt.want {
				t.Errorf("Utterance(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUtteranceIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Thank you for calling. Press 1 for claims, press 2 for prior authorizations.",
		"your authorization pa2024-78432 has been approved",
		"  MIXED   Case,  with   punctuation!!  ",
		"",
	}
	for _, in := range inputs {
		once := Utterance(in)
		twice := Utterance(once)
		if once != twice {
			t.Errorf("Utterance not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestPromptHash(t *testing.T) {
	t.Parallel()

	a := PromptHash(Utterance("Please enter your member ID."))
	b := PromptHash(Utterance("please   enter your member ID!"))
	if a != b {
		t.Errorf("hashes differ for prompts that normalize identically: %d vs %d", a, b)
	}

	c := PromptHash(Utterance("Please enter your date of birth."))
	if a == c {
		t.Errorf("distinct prompts produced the same hash %d", a)
	}
}
