package pseudonym

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var trailingDigits = regexp.MustCompile(`[0-9]+$`)

// NextCandidate resolves a collision deterministically: the trailing run of
// digits is incremented by one, keeping its zero padding ("SW09" -> "SW10",
// "N02s1963SW13" -> "N02s1963SW14"). A candidate without trailing digits
// gets "1" appended.
func NextCandidate(candidate string) string {
	loc := trailingDigits.FindStringIndex(candidate)
	if loc == nil {
		return candidate + "1"
	}

	prefix := candidate[:loc[0]]
	digits := candidate[loc[0]:]

	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		// Suffix too long to parse as a number; start a fresh counter.
		return candidate + "1"
	}

	return prefix + fmt.Sprintf("%0*d", len(digits), n+1)
}

// normalizeSeed strips whitespace so "  n02s " and "n02s" allocate the same
// candidate space. Empty seeds are rejected by the service.
func normalizeSeed(seed string) string {
	return strings.TrimSpace(seed)
}
