package furigana

import (
	"regexp"
	"strings"

	"github.com/japaniel/yomigana/pkg/charclass"
)

// notationRe matches a kanji run followed by a parenthesized kana reading,
// with ASCII or full-width parentheses: 漢字(かんじ), 漢字（かんじ）.
var notationRe = regexp.MustCompile(
	`([\x{4E00}-\x{9FFF}\x{3400}-\x{4DBF}\x{F900}-\x{FAFF}々〆〇]+)` +
		`[(（]([\x{3041}-\x{309F}\x{30A1}-\x{30FA}\x{30FC}-\x{30FF}]+)[)）]`)

// piece is a stretch of input that either carries an explicit reading or
// still needs segmenting.
type piece struct {
	text    string
	reading string
	marked  bool
}

// extractNotation splits text around inline kanji(reading) annotations. The
// parentheses and the reading are consumed.
func extractNotation(text string) []piece {
	locs := notationRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return []piece{{text: text}}
	}
	var out []piece
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			out = append(out, piece{text: text[last:loc[0]]})
		}
		out = append(out, piece{
			text:    text[loc[2]:loc[3]],
			reading: charclass.ToHiragana(text[loc[4]:loc[5]]),
			marked:  true,
		})
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, piece{text: text[last:]})
	}
	return out
}

var (
	// (?s) allows dot to match newlines
	// (?i) makes it case-insensitive
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>(.*?)</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// RubyToNotation rewrites HTML ruby annotations into inline notation:
// <ruby>漢字<rt>かんじ</rt></ruby> becomes <ruby>漢字(かんじ)</ruby>. Ruby
// parentheses (<rp>) are dropped. Text extractors then keep the reading in
// a form the fallback tokenizer understands instead of duplicating it as
// "漢字かんじ".
func RubyToNotation(content []byte) []byte {
	cleaned := reRP.ReplaceAll(content, nil)
	return reRT.ReplaceAll(cleaned, []byte("($1)"))
}

// SplitSentences splits text after each sentence delimiter and newline.
// The delimiters stay attached to their sentence.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		// 。(3002), ！(FF01), ？(FF1F)
		if r == '。' || r == '！' || r == '？' || r == '\n' {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}
