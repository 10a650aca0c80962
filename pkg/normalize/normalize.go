// Package normalize reduces inflected Japanese words to dictionary form.
package normalize

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/japaniel/yomigana/pkg/analyzer"
	"github.com/japaniel/yomigana/pkg/charclass"
	"github.com/japaniel/yomigana/pkg/logging"
	"github.com/japaniel/yomigana/pkg/segment"
)

// Confidence values attached to a NormalizedForm.
const (
	ConfidenceExact      = 1.0
	ConfidenceInflected  = 0.8
	ConfidenceUnverified = 0.0
)

// NormalizedForm is the result of normalizing a single word.
type NormalizedForm struct {
	OriginalForm   string
	NormalizedForm string
	// Confidence is 1.0 when nothing was changed, lower otherwise, and 0.0
	// when no analyzer could verify the form.
	Confidence   float64
	PartOfSpeech string
	// Guess is a heuristic dictionary form, set only when the analyzer is
	// unavailable. It is never used as NormalizedForm.
	Guess string
}

// skipPOS lists primary parts of speech that are never vocabulary.
var skipPOS = []string{"助詞", "記号", "補助記号", "空白"}

// Normalizer maps surface forms to dictionary forms.
type Normalizer struct {
	provider *analyzer.Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Normalizer sharing provider with the tokenizer. timeout
// bounds each analyzer call; zero leaves it to the caller's context.
func New(provider *analyzer.Provider, timeout time.Duration, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = logging.Discard()
	}
	if provider == nil {
		provider = analyzer.NewProvider(nil, 0, logger)
	}
	return &Normalizer{provider: provider, timeout: timeout, logger: logger}
}

// Clean folds width variants (half-width katakana, full-width ASCII) and
// trims surrounding whitespace.
func Clean(word string) string {
	return strings.TrimSpace(norm.NFKC.String(word))
}

// Normalize returns the dictionary form of word. When the analyzer is
// unavailable the word comes back unchanged with confidence 0.
func (n *Normalizer) Normalize(ctx context.Context, word string) NormalizedForm {
	if word == "" {
		return NormalizedForm{}
	}
	ms, ok := n.analyze(ctx, word)
	if !ok || len(ms) == 0 {
		return NormalizedForm{
			OriginalForm:   word,
			NormalizedForm: word,
			Confidence:     ConfidenceUnverified,
			Guess:          Guess(word),
		}
	}

	first := ms[0]
	base := first.BaseForm
	if base == "" {
		base = first.Surface
	}
	confidence := ConfidenceInflected
	if base == word {
		confidence = ConfidenceExact
	}
	return NormalizedForm{
		OriginalForm:   word,
		NormalizedForm: base,
		Confidence:     confidence,
		PartOfSpeech:   first.PrimaryPOS,
	}
}

// NormalizeText normalizes every content word of text, skipping particles,
// symbols and whitespace. Without an analyzer the words come from
// roughWords and are returned unverified.
func (n *Normalizer) NormalizeText(ctx context.Context, text string) []NormalizedForm {
	if text == "" {
		return nil
	}
	var out []NormalizedForm
	ms, ok := n.analyze(ctx, text)
	if !ok {
		for _, w := range roughWords(text) {
			out = append(out, NormalizedForm{
				OriginalForm:   w,
				NormalizedForm: w,
				Confidence:     ConfidenceUnverified,
				Guess:          Guess(w),
			})
		}
		return out
	}
	for _, m := range ms {
		if skipped(m) {
			continue
		}
		base := m.BaseForm
		if base == "" {
			base = m.Surface
		}
		confidence := ConfidenceInflected
		if base == m.Surface {
			confidence = ConfidenceExact
		}
		out = append(out, NormalizedForm{
			OriginalForm:   m.Surface,
			NormalizedForm: base,
			Confidence:     confidence,
			PartOfSpeech:   m.PrimaryPOS,
		})
	}
	return out
}

// ExtractVocabulary returns the sorted set of base forms in text that count
// as vocabulary. Single-character forms are dropped as too ambiguous.
func (n *Normalizer) ExtractVocabulary(ctx context.Context, text string) []string {
	seen := make(map[string]struct{})
	for _, f := range n.NormalizeText(ctx, text) {
		if utf8.RuneCountInString(f.NormalizedForm) <= 1 {
			continue
		}
		seen[f.NormalizedForm] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	slices.Sort(out)
	return out
}

// State reports the analyzer state used for normalization.
func (n *Normalizer) State() analyzer.State {
	return n.provider.State()
}

func (n *Normalizer) analyze(ctx context.Context, text string) ([]analyzer.Morpheme, bool) {
	a, ok := n.provider.Acquire(ctx)
	if !ok {
		return nil, false
	}
	callCtx := ctx
	if n.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	ms, err := a.Analyze(callCtx, text)
	if err != nil {
		// A caller that gave up says nothing about the analyzer.
		if ctx.Err() == nil {
			n.provider.Demote(err)
		}
		return nil, false
	}
	return ms, true
}

func skipped(m analyzer.Morpheme) bool {
	if strings.TrimSpace(m.Surface) == "" {
		return true
	}
	for _, pos := range m.PartsOfSpeech {
		if slices.Contains(skipPOS, pos) {
			return true
		}
	}
	return slices.Contains(skipPOS, m.PrimaryPOS)
}

func isWordSegment(s string) bool {
	for _, r := range s {
		switch charclass.Classify(r) {
		case charclass.Delimiter, charclass.Whitespace:
			return false
		}
	}
	return s != ""
}

// particleStarts are kana that, right after a kanji run, begin a particle
// rather than okurigana.
const particleStarts = "をはがにでともへのや"

// suruStarts begin the common forms of する after a kanji compound.
var suruStarts = []string{"する", "すれ", "させ", "され", "して", "した", "しま", "しな", "しよ"}

// roughWords splits text into likely words without an analyzer. Words end
// at delimiters and whitespace. A kanji run keeps the kana that follow it
// as okurigana (食べました), unless they start with a particle or a form of
// する, in which case the kana become a word of their own with any leading
// particle dropped.
func roughWords(text string) []string {
	segs := segment.Split(text)
	var out []string
	for i := 0; i < len(segs); i++ {
		seg := segs[i]
		if !isWordSegment(seg.Text) {
			continue
		}
		if !seg.Ideographic || i+1 == len(segs) || segs[i+1].Ideographic {
			out = append(out, seg.Text)
			continue
		}
		tail := segs[i+1].Text
		if !charclass.IsAllKana(tail) {
			out = append(out, seg.Text)
			continue
		}
		i++
		first, size := utf8.DecodeRuneInString(tail)
		switch {
		case strings.ContainsRune(particleStarts, first):
			out = append(out, seg.Text)
			if rest := tail[size:]; rest != "" {
				out = append(out, rest)
			}
		case utf8.RuneCountInString(seg.Text) > 1 && hasAnyPrefix(tail, suruStarts):
			out = append(out, seg.Text, tail)
		default:
			out = append(out, seg.Text+tail)
		}
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
