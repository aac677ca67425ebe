package fidelity

import (
	"fmt"
	"regexp"
	"strings"
)

// Default patterns: bare page numbers and "chapter N:" running titles.
// Book-specific running headers come from the profile.
var defaultPagePatterns = []string{`^\d{1,4}$`}
var defaultHeaderPatterns = []string{`^chapter\s+\d+\s*:.*$`}

// Boilerplate matches header and footer lines that the source layout
// repeats on every page. It is applied to the reference side only:
// boilerplate showing up in a candidate rendering is a fidelity signal
// and is left for the comparator to count.
type Boilerplate struct {
	patterns []*regexp.Regexp
}

// NewBoilerplate compiles line patterns, matched against whole normalized
// (lowercased) lines. Empty slices fall back to the defaults.
func NewBoilerplate(pagePatterns, headerPatterns []string) (*Boilerplate, error) {
	if len(pagePatterns) == 0 {
		pagePatterns = defaultPagePatterns
	}
	if len(headerPatterns) == 0 {
		headerPatterns = defaultHeaderPatterns
	}
	b := &Boilerplate{}
	for _, pat := range append(append([]string{}, pagePatterns...), headerPatterns...) {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("compile boilerplate pattern %q: %w", pat, err)
		}
		b.patterns = append(b.patterns, re)
	}
	return b, nil
}

// DefaultBoilerplate returns the built-in pattern set.
func DefaultBoilerplate() *Boilerplate {
	b, err := NewBoilerplate(nil, nil)
	if err != nil {
		panic(err) // built-in patterns always compile
	}
	return b
}

// StripLines removes matching lines from text, returning the kept text
// and the number of lines dropped.
func (b *Boilerplate) StripLines(text string) (string, int) {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	dropped := 0
	for _, line := range lines {
		if b.matches(Normalize(line)) {
			dropped++
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), dropped
}

func (b *Boilerplate) matches(line string) bool {
	if line == "" {
		return false
	}
	for _, re := range b.patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
