package dictionary

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/japaniel/yomigana/pkg/charclass"
)

// ErrNotFound is returned when no entry matches a lookup.
var ErrNotFound = errors.New("dictionary: no entry found")

// Index is an in-memory lookup over kanji and kana spellings. It is safe
// for concurrent use.
type Index struct {
	mu    sync.RWMutex
	index map[string][]JMdictEntry
	size  int
}

// NewIndex builds an index of entries. Kana spellings are also indexed in
// hiragana so katakana input finds hiragana entries and the reverse.
func NewIndex(entries []JMdictEntry) *Index {
	ix := &Index{index: make(map[string][]JMdictEntry)}
	ix.Add(entries...)
	return ix
}

// Add indexes more entries.
func (ix *Index) Add(entries ...JMdictEntry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, e := range entries {
		keys := make(map[string]struct{})
		for _, k := range e.Kanji {
			keys[k.Text] = struct{}{}
		}
		for _, k := range e.Kana {
			keys[k.Text] = struct{}{}
			keys[charclass.ToHiragana(k.Text)] = struct{}{}
		}
		for key := range keys {
			if key != "" {
				ix.index[key] = append(ix.index[key], e)
			}
		}
		ix.size++
	}
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.size
}

// Lookup returns entries spelled word, optionally narrowed to those that
// can be read as reading. Results are ranked common first, then by ID.
func (ix *Index) Lookup(word, reading string) ([]JMdictEntry, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil, ErrNotFound
	}
	ix.mu.RLock()
	candidates := ix.index[word]
	if len(candidates) == 0 {
		candidates = ix.index[charclass.ToHiragana(word)]
	}
	ix.mu.RUnlock()

	var out []JMdictEntry
	for _, e := range candidates {
		if hasReading(e, reading) {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	slices.SortStableFunc(out, func(a, b JMdictEntry) int {
		if a.Common() != b.Common() {
			if a.Common() {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Id, b.Id)
	})
	return out, nil
}

// ResolveWordID returns the ID of the best entry for word.
func (ix *Index) ResolveWordID(word string) (string, bool) {
	entries, err := ix.Lookup(word, "")
	if err != nil {
		return "", false
	}
	return entries[0].Id, true
}

// Definitions returns the flattened definitions for word.
func (ix *Index) Definitions(word, reading string) ([]Definition, error) {
	entries, err := ix.Lookup(word, reading)
	if err != nil {
		return nil, err
	}
	return toDefinitions(entries), nil
}

func hasReading(e JMdictEntry, reading string) bool {
	if reading == "" {
		return true
	}
	want := charclass.ToHiragana(reading)
	for _, k := range e.Kana {
		if charclass.ToHiragana(k.Text) == want {
			return true
		}
	}
	return false
}

func toDefinitions(entries []JMdictEntry) []Definition {
	defs := make([]Definition, 0, len(entries))
	for _, e := range entries {
		d := Definition{ID: e.Id, Headword: e.Headword()}
		for _, k := range e.Kana {
			d.Readings = append(d.Readings, k.Text)
		}
		for _, s := range e.Sense {
			var glosses []string
			for _, g := range s.Gloss {
				if g.Lang == "" || g.Lang == "eng" {
					glosses = append(glosses, g.Text)
				}
			}
			if len(glosses) > 0 {
				d.Senses = append(d.Senses, strings.Join(glosses, "; "))
			}
			for _, p := range s.PartOfSpeech {
				if !slices.Contains(d.POS, p) {
					d.POS = append(d.POS, p)
				}
			}
		}
		defs = append(defs, d)
	}
	return defs
}

// FormatDefinitions renders entries as a JSON list of definitions.
func FormatDefinitions(entries []JMdictEntry) (string, error) {
	b, err := json.Marshal(toDefinitions(entries))
	return string(b), err
}
