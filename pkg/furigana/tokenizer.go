package furigana

import (
	"context"
	"log/slog"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/japaniel/yomigana/pkg/analyzer"
	"github.com/japaniel/yomigana/pkg/charclass"
	"github.com/japaniel/yomigana/pkg/logging"
	"github.com/japaniel/yomigana/pkg/segment"
)

// DefaultCacheSize bounds the number of distinct inputs kept in the cache.
const DefaultCacheSize = 1024

// Options configures a Tokenizer.
type Options struct {
	// CacheSize is the LRU capacity. Zero selects DefaultCacheSize; a
	// negative value disables caching.
	CacheSize int
	// Timeout bounds each analyzer call. Zero means the caller's context
	// alone bounds it.
	Timeout time.Duration
	// Logger is used for degradation messages. nil means no logging.
	Logger *slog.Logger
}

// Tokenizer produces furigana tokens, using the analyzer when it is Ready
// and the segmenter plus inline notation otherwise. It is safe for
// concurrent use.
type Tokenizer struct {
	provider *analyzer.Provider
	cache    *lru.Cache[string, Tokens]
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Tokenizer. A nil provider behaves as one that is
// permanently Degraded.
func New(provider *analyzer.Provider, opts Options) *Tokenizer {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if provider == nil {
		provider = analyzer.NewProvider(nil, 0, logger)
	}
	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	t := &Tokenizer{
		provider: provider,
		timeout:  opts.Timeout,
		logger:   logger,
	}
	if size > 0 {
		// lru.New only fails for a non-positive size.
		t.cache, _ = lru.New[string, Tokens](size)
	}
	return t
}

// State reports the analyzer state the Tokenizer is running under.
func (t *Tokenizer) State() analyzer.State {
	return t.provider.State()
}

// Tokenize annotates text. It never fails: analyzer errors demote the
// provider and the call falls back to segmentation. Inline kanji(reading)
// annotations are honoured in both modes; only the text between them is
// sent to the analyzer.
func (t *Tokenizer) Tokenize(ctx context.Context, text string) Tokens {
	if text == "" {
		return nil
	}
	if t.cache != nil {
		if cached, ok := t.cache.Get(text); ok {
			return slices.Clone(cached)
		}
	}

	if a, ok := t.provider.Acquire(ctx); ok {
		toks, err := t.analyze(ctx, a, text)
		if err == nil {
			t.store(text, toks)
			return slices.Clone(toks)
		}
		// The caller giving up is not an analyzer failure.
		if ctx.Err() != nil {
			return Fallback(text)
		}
		t.provider.Demote(err)
	}

	toks := Fallback(text)
	// An Uninitialized provider may still become Ready; only cache
	// results that cannot change.
	if t.provider.State() == analyzer.Degraded {
		t.store(text, toks)
	}
	return slices.Clone(toks)
}

func (t *Tokenizer) analyze(ctx context.Context, a analyzer.Analyzer, text string) (Tokens, error) {
	var out Tokens
	for _, p := range extractNotation(text) {
		if p.marked {
			out = append(out, Token{Kind: Ideographic, Surface: p.text, Reading: p.reading})
			continue
		}
		callCtx, cancel := t.callContext(ctx)
		ms, err := a.Analyze(callCtx, p.text)
		cancel()
		if err != nil {
			return nil, err
		}
		out = append(out, fromMorphemes(ms)...)
	}
	return out, nil
}

func (t *Tokenizer) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout > 0 {
		return context.WithTimeout(ctx, t.timeout)
	}
	return context.WithCancel(ctx)
}

func (t *Tokenizer) store(text string, toks Tokens) {
	if t.cache != nil {
		t.cache.Add(text, toks)
	}
}

// Fallback tokenizes text without an analyzer. Inline kanji(reading)
// annotations become Ideographic tokens with that reading; other kanji
// runs become Ideographic tokens without a reading; everything else is
// Text.
func Fallback(text string) Tokens {
	var out Tokens
	for _, p := range extractNotation(text) {
		if p.marked {
			out = append(out, Token{Kind: Ideographic, Surface: p.text, Reading: p.reading})
			continue
		}
		for _, seg := range segment.Split(p.text) {
			kind := Text
			if seg.Ideographic {
				kind = Ideographic
			}
			out = append(out, Token{Kind: kind, Surface: seg.Text})
		}
	}
	return out
}

func fromMorphemes(ms []analyzer.Morpheme) Tokens {
	out := make(Tokens, 0, len(ms))
	for _, m := range ms {
		if m.Surface == "" {
			continue
		}
		if !charclass.ContainsIdeograph(m.Surface) || m.Reading == "" ||
			m.Reading == charclass.ToHiragana(m.Surface) {
			out = append(out, Token{Kind: Text, Surface: m.Surface, PartOfSpeech: m.PrimaryPOS})
			continue
		}
		out = append(out, splitOkurigana(m)...)
	}
	return out
}

// splitOkurigana moves kana shared by the surface and the reading out of
// the annotated token, so 食べ/たべ becomes 食[た] followed by べ.
func splitOkurigana(m analyzer.Morpheme) []Token {
	surface := []rune(m.Surface)
	reading := []rune(m.Reading)

	head := 0
	for head < len(surface)-1 && head < len(reading)-1 && sameKana(surface[head], reading[head]) {
		head++
	}
	tail := 0
	for tail < len(surface)-head-1 && tail < len(reading)-head-1 &&
		sameKana(surface[len(surface)-1-tail], reading[len(reading)-1-tail]) {
		tail++
	}

	core := string(surface[head : len(surface)-tail])
	if !charclass.ContainsIdeograph(core) {
		return []Token{{Kind: Ideographic, Surface: m.Surface, Reading: m.Reading, PartOfSpeech: m.PrimaryPOS}}
	}

	var out []Token
	if head > 0 {
		out = append(out, Token{Kind: Text, Surface: string(surface[:head]), PartOfSpeech: m.PrimaryPOS})
	}
	out = append(out, Token{
		Kind:         Ideographic,
		Surface:      core,
		Reading:      string(reading[head : len(reading)-tail]),
		PartOfSpeech: m.PrimaryPOS,
	})
	if tail > 0 {
		out = append(out, Token{Kind: Text, Surface: string(surface[len(surface)-tail:]), PartOfSpeech: m.PrimaryPOS})
	}
	return out
}

func sameKana(s, r rune) bool {
	return charclass.IsKana(s) && charclass.ToHiragana(string(s)) == string(r)
}

// TokenizeAll tokenizes texts concurrently on a worker pool and returns
// the results in input order.
func (t *Tokenizer) TokenizeAll(ctx context.Context, texts []string, workers int) []Tokens {
	out := make([]Tokens, len(texts))
	done := make([]bool, len(texts))

	wp := NewWorkerPool(workers, len(texts))
	wp.Start(ctx)
	for i := range texts {
		err := wp.SubmitCtx(ctx, func(ctx context.Context) error {
			out[i] = t.Tokenize(ctx, texts[i])
			done[i] = true
			return nil
		})
		if err != nil {
			t.logger.Debug("stopping batch tokenization early", "error", err)
			break
		}
	}
	wp.Close()

	// Jobs skipped by cancellation still get the fallback result.
	for i := range texts {
		if !done[i] {
			out[i] = t.Tokenize(ctx, texts[i])
		}
	}
	return out
}
