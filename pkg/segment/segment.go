// Package segment splits text into maximal ideographic and plain runs.
package segment

import (
	"strings"

	"github.com/japaniel/yomigana/pkg/charclass"
)

// Segment is one run of the input. Concatenating Text over the result of
// Split reproduces the input exactly.
type Segment struct {
	Ideographic bool
	Text        string
}

// runKind groups runes that may share a segment.
type runKind int

const (
	kindPlain runKind = iota
	kindIdeograph
	kindDelimiter
	kindWhitespace
)

func kindOf(r rune) runKind {
	switch charclass.Classify(r) {
	case charclass.Ideograph:
		return kindIdeograph
	case charclass.Delimiter:
		return kindDelimiter
	case charclass.Whitespace:
		return kindWhitespace
	}
	return kindPlain
}

// Split returns the maximal runs of text. Kanji runs are ideographic;
// delimiters and whitespace always form their own runs so a trailing
// punctuation mark is never merged into the word before it.
func Split(text string) []Segment {
	if text == "" {
		return nil
	}
	var out []Segment
	var cur strings.Builder
	curKind := runKind(-1)

	emit := func() {
		if cur.Len() == 0 {
			return
		}
		out = append(out, Segment{Ideographic: curKind == kindIdeograph, Text: cur.String()})
		cur.Reset()
	}

	for _, r := range text {
		k := kindOf(r)
		if k != curKind {
			emit()
			curKind = k
		}
		cur.WriteRune(r)
	}
	emit()
	return out
}
