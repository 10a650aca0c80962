// Package furigana turns raw Japanese text into tokens that carry a
// phonetic reading where one is needed.
package furigana

import (
	"iter"
	"strings"
)

// Kind distinguishes plain text from ideographic text.
type Kind int

const (
	Text Kind = iota
	Ideographic
)

func (k Kind) String() string {
	if k == Ideographic {
		return "ideographic"
	}
	return "text"
}

// Token is one piece of annotated text. Surface is never empty. Reading is
// set only on Ideographic tokens whose reading is known.
type Token struct {
	Kind         Kind
	Surface      string
	Reading      string
	PartOfSpeech string
}

// HasReading reports whether the token should be drawn with furigana.
func (t Token) HasReading() bool {
	return t.Kind == Ideographic && t.Reading != ""
}

// Tokens is the result of one tokenization pass.
type Tokens []Token

// All yields the tokens in order. The sequence is finite and can be ranged
// over any number of times.
func (ts Tokens) All() iter.Seq[Token] {
	return func(yield func(Token) bool) {
		for _, t := range ts {
			if !yield(t) {
				return
			}
		}
	}
}

// Text concatenates the surfaces.
func (ts Tokens) Text() string {
	var b strings.Builder
	for _, t := range ts {
		b.WriteString(t.Surface)
	}
	return b.String()
}

// String renders the tokens in bracket notation, e.g. "漢字[かんじ]を読む".
func (ts Tokens) String() string {
	var b strings.Builder
	for _, t := range ts {
		b.WriteString(t.Surface)
		if t.HasReading() {
			b.WriteByte('[')
			b.WriteString(t.Reading)
			b.WriteByte(']')
		}
	}
	return b.String()
}
