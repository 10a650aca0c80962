// Package wordboundary finds the word under a pointer position.
//
// It is a cheap, synchronous scan over character classes and does not wait
// for the tokenizer, so it can run directly on a pointer event.
package wordboundary

import (
	"unicode"

	"github.com/japaniel/yomigana/pkg/charclass"
)

// WordMatch is the word found around an offset. Start and End are rune
// offsets into the source text with Start < End.
type WordMatch struct {
	Word  string
	Start int
	End   int
}

type script int

const (
	scriptNone script = iota
	scriptJapanese
	scriptLatin
)

func scriptOf(r rune) script {
	switch charclass.Classify(r) {
	case charclass.Ideograph, charclass.Kana:
		return scriptJapanese
	case charclass.Other:
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return scriptLatin
		}
	}
	return scriptNone
}

// Resolve returns the word enclosing the rune at offset. It reports false
// when offset is out of range or lands on whitespace, punctuation or a
// symbol.
func Resolve(text string, offset int) (WordMatch, bool) {
	if offset < 0 {
		return WordMatch{}, false
	}
	runes := []rune(text)
	return ResolveRunes(runes, offset)
}

// ResolveRunes is Resolve over pre-decoded text.
func ResolveRunes(runes []rune, offset int) (WordMatch, bool) {
	if offset < 0 || offset >= len(runes) {
		return WordMatch{}, false
	}
	want := scriptOf(runes[offset])
	if want == scriptNone {
		return WordMatch{}, false
	}

	start := offset
	for start > 0 && scriptOf(runes[start-1]) == want {
		start--
	}
	end := offset + 1
	for end < len(runes) && scriptOf(runes[end]) == want {
		end++
	}
	return WordMatch{Word: string(runes[start:end]), Start: start, End: end}, true
}
