// Package charclass classifies single code points of Japanese text.
//
// Every rune falls into at most one Class. Latin letters, digits and most
// symbols are Other.
package charclass

import "unicode"

// Class is the broad category of a rune.
type Class int

const (
	Other Class = iota
	Ideograph
	Kana
	Delimiter
	Whitespace
)

func (c Class) String() string {
	switch c {
	case Ideograph:
		return "ideograph"
	case Kana:
		return "kana"
	case Delimiter:
		return "delimiter"
	case Whitespace:
		return "whitespace"
	default:
		return "other"
	}
}

// delimiters are the sentence and quotation marks that always end a word,
// including their ASCII counterparts.
var delimiters = map[rune]bool{
	'。': true, '、': true, '！': true, '？': true,
	'「': true, '」': true, '『': true, '』': true,
	'（': true, '）': true, '・': true, '，': true, '．': true,
	'.': true, ',': true, '!': true, '?': true,
	'(': true, ')': true, '"': true, '\'': true,
	'[': true, ']': true, ':': true, ';': true,
}

// IsIdeograph reports whether r is a kanji: CJK Unified Ideographs,
// Extension A, the compatibility block, or one of the marks that behave as
// kanji inside words (々 〆 〇).
func IsIdeograph(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF:
		return true
	case r >= 0x3400 && r <= 0x4DBF:
		return true
	case r >= 0xF900 && r <= 0xFAFF:
		return true
	case r == '々' || r == '〆' || r == '〇':
		return true
	}
	return false
}

// IsKana reports whether r is a hiragana or katakana syllable, or the
// long-vowel mark. The katakana middle dot is a delimiter, not kana.
func IsKana(r rune) bool {
	switch {
	case r >= 0x3041 && r <= 0x309F:
		return true
	case r >= 0x30A1 && r <= 0x30FF && r != '・':
		return true
	case r >= 0x31F0 && r <= 0x31FF:
		return true
	case r >= 0xFF66 && r <= 0xFF9F:
		return true
	}
	return false
}

// IsWhitespace reports whether r is whitespace, including the ideographic
// space U+3000.
func IsWhitespace(r rune) bool {
	return unicode.IsSpace(r)
}

// IsDelimiter reports whether r is punctuation that separates words.
func IsDelimiter(r rune) bool {
	if delimiters[r] {
		return true
	}
	if IsIdeograph(r) || IsKana(r) || IsWhitespace(r) {
		return false
	}
	if r >= 0x3001 && r <= 0x303F {
		return true
	}
	return unicode.IsPunct(r)
}

// Classify returns the single class r belongs to.
func Classify(r rune) Class {
	switch {
	case IsIdeograph(r):
		return Ideograph
	case IsKana(r):
		return Kana
	case IsWhitespace(r):
		return Whitespace
	case IsDelimiter(r):
		return Delimiter
	}
	return Other
}

// ContainsIdeograph reports whether s has at least one ideograph.
func ContainsIdeograph(s string) bool {
	for _, r := range s {
		if IsIdeograph(r) {
			return true
		}
	}
	return false
}

// IsAllKana reports whether s is non-empty and made only of kana.
func IsAllKana(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !IsKana(r) {
			return false
		}
	}
	return true
}

// ToHiragana converts Katakana to Hiragana.
func ToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x30A1 && r <= 0x30F6 {
			runes[i] = r - 0x60
		}
	}
	return string(runes)
}
