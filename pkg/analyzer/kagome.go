package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/ikawaha/kagome-dict/dict"
	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome-dict/uni"
	"github.com/ikawaha/kagome/v2/tokenizer"

	"github.com/japaniel/yomigana/pkg/charclass"
)

// Dictionary names accepted by NewKagome.
const (
	DictIPA = "ipa"
	DictUni = "uni"
)

// Kagome is the external analyzer variant.
type Kagome struct {
	t *tokenizer.Tokenizer
}

// NewKagome creates a tokenizer over the named system dictionary.
// An empty name selects IPA.
func NewKagome(dictName string) (*Kagome, error) {
	var d *dict.Dict
	switch strings.ToLower(dictName) {
	case "", DictIPA:
		d = ipa.Dict()
	case DictUni:
		d = uni.Dict()
	default:
		return nil, fmt.Errorf("unknown analyzer dictionary %q", dictName)
	}
	t, err := tokenizer.New(d, tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Kagome{t: t}, nil
}

// LoadKagome returns a LoadFunc for use with NewProvider.
func LoadKagome(dictName string) LoadFunc {
	return func(ctx context.Context) (Analyzer, error) {
		return NewKagome(dictName)
	}
}

// Analyze breaks text into morphemes with hiragana readings and base forms.
// Kagome itself cannot be interrupted, so a cancelled ctx abandons the call
// and reports ErrUnavailable.
func (k *Kagome) Analyze(ctx context.Context, text string) ([]Morpheme, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	type result struct {
		ms  []Morpheme
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: unavailable(fmt.Errorf("kagome panic: %v", r))}
			}
		}()
		ch <- result{ms: k.analyze(text)}
	}()
	select {
	case r := <-ch:
		return r.ms, r.err
	case <-ctx.Done():
		return nil, unavailable(ctx.Err())
	}
}

func (k *Kagome) analyze(text string) []Morpheme {
	tokens := k.t.Tokenize(text)
	result := make([]Morpheme, 0, len(tokens))

	// Kagome may skip bytes it has no node for; fill those gaps so the
	// output stays lossless.
	pos := 0
	for _, token := range tokens {
		if token.Class == tokenizer.DUMMY || token.Surface == "" {
			continue
		}
		if token.Position > pos && token.Position <= len(text) {
			result = append(result, gapMorpheme(text[pos:token.Position]))
		}

		features := token.Features()
		base, ok := token.BaseForm()
		if !ok || base == "*" || base == "" {
			base = token.Surface
		}
		reading, ok := token.Reading()
		if !ok || reading == "*" {
			reading = ""
		}
		primaryPOS := ""
		if len(features) > 0 {
			primaryPOS = features[0]
		}

		result = append(result, Morpheme{
			Surface:       token.Surface,
			BaseForm:      base,
			Reading:       charclass.ToHiragana(reading),
			PartsOfSpeech: token.POS(),
			PrimaryPOS:    primaryPOS,
		})
		pos = token.Position + len(token.Surface)
	}
	if pos < len(text) {
		result = append(result, gapMorpheme(text[pos:]))
	}
	return result
}

func gapMorpheme(s string) Morpheme {
	pos := "記号"
	if strings.TrimSpace(s) == "" {
		pos = "空白"
	}
	return Morpheme{
		Surface:       s,
		BaseForm:      s,
		PartsOfSpeech: []string{pos},
		PrimaryPOS:    pos,
	}
}
