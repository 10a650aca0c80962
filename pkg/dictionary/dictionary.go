// Package dictionary resolves normalized words to JMdict entries.
//
// It reads the jmdict-simplified JSON release, indexes every kanji and kana
// spelling, and answers lookups for the tracker's word IDs and for
// definition display.
package dictionary

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// JMdictEntry matches the structure of jmdict-simplified entries.
type JMdictEntry struct {
	Id    string          `json:"id"`
	Kanji []JMdictElement `json:"kanji"`
	Kana  []JMdictElement `json:"kana"`
	Sense []JMdictSense   `json:"sense"`
}

type JMdictElement struct {
	Text   string   `json:"text"`
	Common bool     `json:"common"`
	Tags   []string `json:"tags"`
}

type JMdictSense struct {
	PartOfSpeech []string      `json:"partOfSpeech"`
	Gloss        []JMdictGloss `json:"gloss"`
}

type JMdictGloss struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// Common reports whether any spelling of e is marked common.
func (e JMdictEntry) Common() bool {
	for _, k := range e.Kanji {
		if k.Common {
			return true
		}
	}
	for _, k := range e.Kana {
		if k.Common {
			return true
		}
	}
	return false
}

// Headword returns the first kanji spelling, or the first kana one for
// kana-only words.
func (e JMdictEntry) Headword() string {
	if len(e.Kanji) > 0 {
		return e.Kanji[0].Text
	}
	if len(e.Kana) > 0 {
		return e.Kana[0].Text
	}
	return ""
}

// Definition is one entry flattened for display.
type Definition struct {
	ID       string   `json:"id"`
	Headword string   `json:"headword"`
	Readings []string `json:"readings"`
	Senses   []string `json:"senses"`
	POS      []string `json:"pos"`
}

// LoadJMdictSimplified reads a dictionary file from disk.
func LoadJMdictSimplified(path string) ([]JMdictEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Parse accepts either the release wrapper {"words": [...]} or a bare
// array of entries.
func Parse(r io.Reader) ([]JMdictEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var wrapped struct {
		Words []JMdictEntry `json:"words"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Words) > 0 {
		return wrapped.Words, nil
	}
	var entries []JMdictEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse dictionary as object or array: %w", err)
	}
	return entries, nil
}
