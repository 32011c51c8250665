package pseudonym

import "testing"

func TestNextCandidateIncrementsTrailingDigits(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"N02s1963SW13", "N02s1963SW14"},
		{"N02s1963SW19", "N02s1963SW20"},
		{"participant9", "participant10"},
		{"SW09", "SW10"},
		{"SW099", "SW100"},
		{"42", "43"},
	}
	for _, tc := range cases {
		if got := NextCandidate(tc.in); got != tc.want {
			t.Fatalf("NextCandidate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNextCandidateAppendsOneWithoutDigits(t *testing.T) {
	if got := NextCandidate("falcon"); got != "falcon1" {
		t.Fatalf("expected falcon1, got %q", got)
	}
	if got := NextCandidate(""); got != "1" {
		t.Fatalf("expected 1 for empty candidate, got %q", got)
	}
}

func TestNextCandidatePreservesZeroPadding(t *testing.T) {
	if got := NextCandidate("N007"); got != "N008" {
		t.Fatalf("expected N008, got %q", got)
	}
}
