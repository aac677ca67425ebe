// Package fidelity measures how faithfully a candidate rendering
// reproduces reference content: token coverage, missing words, and
// duplicated blocks.
package fidelity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// foldRunes maps typographic variants onto plain forms so smart and
// straight punctuation compare equal.
var foldRunes = map[rune]rune{
	'‘': '\'', // left single quote
	'’': '\'', // right single quote
	'“': '"',  // left double quote
	'”': '"',  // right double quote
	'–': '-',  // en dash
	'—': '-',  // em dash
	' ': ' ',  // no-break space
}

// Normalize lowercases text, folds smart punctuation, and collapses
// whitespace runs to single spaces.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if f, ok := foldRunes[r]; ok {
			r = f
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokenize splits text into normalized whitespace-delimited tokens.
func Tokenize(s string) []string {
	return strings.Fields(Normalize(s))
}

// isFormattingToken reports whether a missing token is a single
// character or bare punctuation. Such misses are reported separately:
// a reader would not notice them as lost content.
func isFormattingToken(tok string) bool {
	if utf8.RuneCountInString(tok) <= 1 {
		return true
	}
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
