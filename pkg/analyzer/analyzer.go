// Package analyzer adapts an optional morphological analyzer.
//
// There are two variants: Kagome, backed by github.com/ikawaha/kagome, and
// None, which is always unavailable. Callers never see a fatal error from
// either; any failure is reported as ErrUnavailable and the caller falls
// back to the plain segmenter.
package analyzer

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable reports that no analyzer can serve the request. It is
// never fatal.
var ErrUnavailable = errors.New("analyzer unavailable")

// Morpheme is a single analyzed unit of text.
type Morpheme struct {
	Surface       string   // The text as it appears (e.g. "食べ")
	BaseForm      string   // The dictionary form (e.g. "食べる")
	Reading       string   // Phonetic reading, always hiragana (e.g. "たべ")
	PartsOfSpeech []string // e.g. ["動詞", "自立", "*", "*"]
	// PrimaryPOS is the first part of speech if available.
	PrimaryPOS string
}

// Analyzer splits text into morphemes. The morphemes cover the input
// losslessly: concatenating Surface reproduces text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) ([]Morpheme, error)
}

// None is the analyzer used when nothing better exists.
type None struct{}

// Analyze always fails with ErrUnavailable.
func (None) Analyze(ctx context.Context, text string) ([]Morpheme, error) {
	return nil, ErrUnavailable
}

func unavailable(cause error) error {
	if cause == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, cause)
}
