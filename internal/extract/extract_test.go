package extract

import "testing"

func TestFromUtterance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want Result
	}{
		{
			name: "approved with validity date",
			text: "Your authorization PA2024-78432 for CPT code 73721 is approved through June 30th, 2024.",
			want: Result{
				Found:        true,
				AuthNumber:   "PA202478432",
				Status:       StatusApproved,
				ValidThrough: "June 30 2024",
			},
		},
		{
			name: "denied with reason marker",
			text: "Authorization PA2024-65234 was denied. Reason: Conservative treatment not attempted.",
			want: Result{
				Found:        true,
				AuthNumber:   "PA202465234",
				Status:       StatusDenied,
				DenialReason: "Conservative treatment not attempted",
			},
		},
		{
			name: "denied without marker keeps remainder verbatim",
			text: "Authorization PA2024-65234 was denied because documentation was incomplete",
			want: Result{
				Found:        true,
				AuthNumber:   "PA202465234",
				Status:       StatusDenied,
				DenialReason: "because documentation was incomplete",
			},
		},
		{
			name: "pending without extra fields",
			text: "authorization pa2024-11111 is currently pending review",
			want: Result{
				Found:      true,
				AuthNumber: "PA202411111",
				Status:     StatusPending,
			},
		},
		{
			name: "expired status",
			text: "authorization PA2023-00421 has expired",
			want: Result{
				Found:      true,
				AuthNumber: "PA202300421",
				Status:     StatusExpired,
			},
		},
		{
			name: "code split by speech recognition",
			text: "Your authorization number is PA 2024 78432 and it is approved through 06/30/2024",
			want: Result{
				Found:        true,
				AuthNumber:   "PA202478432",
				Status:       StatusApproved,
				ValidThrough: "06/30/2024",
			},
		},
		{
			name: "no decision keyword at all",
			text: "Please hold while we transfer your call.",
			want: Result{},
		},
		{
			name: "status word without a number is not actionable",
			text: "Your request has been approved.",
			want: Result{},
		},
		{
			name: "number reported not found",
			text: "Authorization PA2024-99999 was not found in our records.",
			want: Result{},
		},
		{
			name: "approved without a through clause",
			text: "authorization PA2024-78432 approved effective immediately",
			want: Result{
				Found:      true,
				AuthNumber: "PA202478432",
				Status:     StatusApproved,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FromUtterance(tt.text)
			if got != tt.want {
				t.Errorf("FromUtterance(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestStatusTieBreakOrder(t *testing.T) {
	t.Parallel()

	// An utterance should not claim two statuses, but if it does the
	// declared order is the tie-break.
	got := FromUtterance("authorization PA1-2 was approved previously but is now denied")
	if got.Status != StatusApproved {
		t.Errorf("Status = %q, want %q", got.Status, StatusApproved)
	}
}

func TestStatusIsValid(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusApproved, StatusDenied, StatusPending, StatusExpired} {
		if !s.IsValid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if Status("maybe").IsValid() {
		t.Error(`"maybe" should not be valid`)
	}
}
