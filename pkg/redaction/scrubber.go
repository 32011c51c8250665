package redaction

import "regexp"

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

// Scrubber masks direct identifiers in prompt and response text before it
// is persisted against a pseudonym. A nil Scrubber passes text through.
type Scrubber struct {
	rules []compiledRule
}

func NewScrubber(cfg RulesConfig) (*Scrubber, error) {
	var compiled []compiledRule
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	return &Scrubber{rules: compiled}, nil
}

func (s *Scrubber) Scrub(text string) string {
	if s == nil {
		return text
	}
	masked := text
	for _, rule := range s.rules {
		masked = rule.re.ReplaceAllString(masked, rule.rule.Mask)
	}
	return masked
}

// Matches reports which rule types fire on the text, without masking.
func (s *Scrubber) Matches(text string) []string {
	if s == nil {
		return nil
	}
	var types []string
	for _, rule := range s.rules {
		if rule.re.MatchString(text) {
			types = append(types, rule.rule.Type)
		}
	}
	return types
}
