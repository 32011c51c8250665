package redaction

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScrubMasksDirectIdentifiers(t *testing.T) {
	scrubber, err := NewScrubber(DefaultRules())
	if err != nil {
		t.Fatalf("scrubber failed: %v", err)
	}

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"email", "reach me at jane.doe@example.com please", "reach me at [email] please"},
		{"phone", "call 030-1234-5678 tomorrow", "call [phone] tomorrow"},
		{"ssn", "my number is 123-45-6789 ok", "my number is [id] ok"},
		{"clean", "nothing personal here", "nothing personal here"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := scrubber.Scrub(tc.in); got != tc.want {
				t.Fatalf("Scrub(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNilScrubberPassesThrough(t *testing.T) {
	var scrubber *Scrubber
	if got := scrubber.Scrub("untouched"); got != "untouched" {
		t.Fatalf("nil scrubber must pass through, got %q", got)
	}
	if matches := scrubber.Matches("a@b.co"); matches != nil {
		t.Fatalf("nil scrubber must not match, got %v", matches)
	}
}

func TestMatchesReportsTypes(t *testing.T) {
	scrubber, err := NewScrubber(DefaultRules())
	if err != nil {
		t.Fatalf("scrubber failed: %v", err)
	}
	matches := scrubber.Matches("mail jane@example.com or 123-45-6789")
	if len(matches) != 2 {
		t.Fatalf("expected email and ssn, got %v", matches)
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := []byte(`rules:
  - name: Handle
    type: handle
    pattern: '@[a-z0-9_]+'
    mask: '[handle]'
    enabled: true
  - name: Disabled
    type: disabled
    pattern: 'never'
    mask: '[x]'
    enabled: false
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	scrubber, err := NewScrubber(cfg)
	if err != nil {
		t.Fatalf("scrubber failed: %v", err)
	}
	if got := scrubber.Scrub("ping @study_bot never"); got != "ping [handle] never" {
		t.Fatalf("unexpected scrub result: %q", got)
	}
}

func TestLoadRulesEmptyPathDefaults(t *testing.T) {
	cfg, err := LoadRules("")
	if err != nil {
		t.Fatalf("empty path should default: %v", err)
	}
	if len(cfg.Rules) == 0 {
		t.Fatal("expected built-in rules")
	}
}
