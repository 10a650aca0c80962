// Package tracker batches word occurrences and hands them to a persistence
// collaborator.
//
// Appends go to an in-memory buffer. The buffer is flushed FlushInterval
// after the last append, or immediately once it holds Capacity entries.
// A failed write puts the entries back at the front of the buffer and
// tries again on the next cycle, so delivery is at-least-once; every
// entry carries a unique ID the writer can use to drop duplicates. Until
// that retry succeeds the capacity trigger is suspended, so a writer that
// is down costs one attempt per cycle rather than one per Record.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/japaniel/yomigana/pkg/logging"
	"github.com/japaniel/yomigana/pkg/normalize"
)

// Defaults for Options.
const (
	DefaultFlushInterval = 2 * time.Second
	DefaultCapacity      = 50
	DefaultWriteTimeout  = 10 * time.Second
)

// Source tells who produced an occurrence.
type Source int

const (
	// User means the learner produced the word.
	User Source = iota
	// Agent means the learner was shown the word.
	Agent
)

func (s Source) String() string {
	if s == Agent {
		return "agent"
	}
	return "user"
}

// ParseSource is the inverse of Source.String.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return User, nil
	case "agent":
		return Agent, nil
	}
	return User, fmt.Errorf("tracker: unknown source %q", s)
}

// Entry is one buffered occurrence.
type Entry struct {
	ID             string
	WordFormUsed   string
	WordNormalized string
	// WordGuess is the heuristic dictionary form, set when the analyzer
	// could not verify WordNormalized.
	WordGuess    string
	Source       Source
	Confidence   float64
	PartOfSpeech string
	SeenAt       time.Time
}

// Writer persists a batch of entries for one user. Implementations must
// treat an entry ID they have already stored as a no-op.
type Writer interface {
	WriteUsage(ctx context.Context, userID string, entries []Entry) error
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, userID string, entries []Entry) error

func (f WriterFunc) WriteUsage(ctx context.Context, userID string, entries []Entry) error {
	return f(ctx, userID, entries)
}

// Normalizer is the part of normalize.Normalizer the tracker needs.
type Normalizer interface {
	Normalize(ctx context.Context, word string) normalize.NormalizedForm
	NormalizeText(ctx context.Context, text string) []normalize.NormalizedForm
}

// Options configures a Tracker. Zero values pick the defaults.
type Options struct {
	UserID        string
	FlushInterval time.Duration
	Capacity      int
	// WriteTimeout bounds each call to the Writer.
	WriteTimeout time.Duration
	Clock        Clock
	// Logger is optional; nil means no logging.
	Logger *slog.Logger
	// OnError is called for every failed write, including those started
	// by the debounce timer. It must not call back into the Tracker.
	OnError func(error)
}

// Tracker is the debounced usage buffer.
type Tracker struct {
	writer Writer
	norm   Normalizer
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	buf    []Entry
	timer  Timer
	gen    uint64
	closed bool
	// retrying is set after a failed write and cleared by the next
	// successful one.
	retrying bool

	// flushMu serializes drains so a requeue never interleaves with
	// another flush.
	flushMu sync.Mutex
}

// New creates a Tracker writing through w. A nil norm records words
// unverified.
func New(w Writer, norm Normalizer, opts Options) *Tracker {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if norm == nil {
		norm = normalize.New(nil, 0, logger)
	}
	return &Tracker{
		writer: w,
		norm:   norm,
		opts:   opts,
		logger: logger.With("component", "tracker", "user", opts.UserID),
	}
}

// Record normalizes word and buffers one occurrence of it. Empty input is
// ignored. It returns ErrClosed after Close; write failures are retried in
// the background and never returned here.
func (t *Tracker) Record(ctx context.Context, word string, source Source) error {
	word = normalize.Clean(word)
	if word == "" {
		t.logger.Debug("ignoring empty word")
		return nil
	}
	if t.isClosed() {
		return ErrClosed
	}
	return t.enqueue(ctx, t.entry(t.norm.Normalize(ctx, word), source))
}

// RecordText buffers one occurrence for every content word in text.
// Single-character forms are skipped.
func (t *Tracker) RecordText(ctx context.Context, text string, source Source) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if t.isClosed() {
		return ErrClosed
	}
	var entries []Entry
	for _, f := range t.norm.NormalizeText(ctx, normalize.Clean(text)) {
		if utf8.RuneCountInString(f.NormalizedForm) <= 1 {
			continue
		}
		entries = append(entries, t.entry(f, source))
	}
	return t.enqueue(ctx, entries...)
}

func (t *Tracker) entry(f normalize.NormalizedForm, source Source) Entry {
	return Entry{
		ID:             uuid.NewString(),
		WordFormUsed:   f.OriginalForm,
		WordNormalized: f.NormalizedForm,
		WordGuess:      f.Guess,
		Source:         source,
		Confidence:     f.Confidence,
		PartOfSpeech:   f.PartOfSpeech,
		SeenAt:         t.opts.Clock.Now(),
	}
}

func (t *Tracker) enqueue(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.buf = append(t.buf, entries...)
	full := false
	switch {
	case t.retrying:
		// Leave the pending retry where it is.
		if t.timer == nil {
			t.scheduleLocked()
		}
	case len(t.buf) >= t.opts.Capacity:
		full = true
		t.cancelTimerLocked()
	default:
		t.scheduleLocked()
	}
	t.mu.Unlock()

	if full {
		// The failure is logged and the entries requeued.
		_ = t.flush(ctx)
	}
	return nil
}

// scheduleLocked (re)starts the debounce timer. mu must be held.
func (t *Tracker) scheduleLocked() {
	t.cancelTimerLocked()
	gen := t.gen
	t.timer = t.opts.Clock.AfterFunc(t.opts.FlushInterval, func() { t.fire(gen) })
}

// cancelTimerLocked stops the pending timer. Bumping gen makes a callback
// that already started a no-op. mu must be held.
func (t *Tracker) cancelTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

func (t *Tracker) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.closed {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()
	_ = t.flush(context.Background())
}

// Flush cancels any pending timer and writes the buffer now. On failure
// the entries stay buffered and the returned error wraps
// ErrPersistenceWrite.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	t.cancelTimerLocked()
	t.mu.Unlock()
	return t.flush(ctx)
}

func (t *Tracker) flush(ctx context.Context) error {
	t.flushMu.Lock()
	defer t.flushMu.Unlock()

	t.mu.Lock()
	batch := t.buf
	t.buf = nil
	t.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	wctx, cancel := context.WithTimeout(ctx, t.opts.WriteTimeout)
	defer cancel()
	err := t.writer.WriteUsage(wctx, t.opts.UserID, batch)
	if err == nil {
		t.mu.Lock()
		t.retrying = false
		t.mu.Unlock()
		t.logger.Debug("flushed usage", "entries", len(batch))
		return nil
	}

	t.mu.Lock()
	t.retrying = true
	t.buf = slices.Concat(batch, t.buf)
	if !t.closed && t.timer == nil {
		t.scheduleLocked()
	}
	pending := len(t.buf)
	t.mu.Unlock()

	werr := fmt.Errorf("%w: %d entries: %w", ErrPersistenceWrite, len(batch), err)
	t.logger.Warn("usage write failed, requeued", "entries", len(batch), "pending", pending, "error", err)
	if t.opts.OnError != nil {
		t.opts.OnError(werr)
	}
	return werr
}

// Pending returns the number of buffered entries.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buf)
}

// Close stops accepting occurrences and flushes what is buffered. Entries
// that still fail stay buffered and can be retried with Flush. A second
// Close returns ErrClosed.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true
	t.cancelTimerLocked()
	t.mu.Unlock()
	return t.flush(ctx)
}

func (t *Tracker) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

var (
	ErrClosed           = &Error{"tracker closed"}
	ErrPersistenceWrite = &Error{"persistence write failed"}
)

type Error struct{ msg string }

func (e *Error) Error() string { return e.msg }
