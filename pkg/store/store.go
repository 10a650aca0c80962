// Package store persists usage batches and mastery records in sqlite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/japaniel/yomigana/pkg/logging"
	"github.com/japaniel/yomigana/pkg/mastery"
	"github.com/japaniel/yomigana/pkg/tracker"
)

// DBExecutor lets queries run against either *sql.DB or *sql.Tx.
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WordResolver maps a normalized surface form to a canonical word ID.
type WordResolver interface {
	ResolveWordID(word string) (string, bool)
}

// Options configures a Store.
type Options struct {
	Policy mastery.Policy
	// Resolver is optional; without it the normalized form is the word ID.
	Resolver WordResolver
	Logger   *slog.Logger
}

// Store implements tracker.Writer on sqlite.
type Store struct {
	db       *sql.DB
	policy   mastery.Policy
	resolver WordResolver
	logger   *slog.Logger
}

var _ tracker.Writer = (*Store)(nil)

// New wraps an already migrated database. A zero Policy uses
// mastery.DefaultPolicy.
func New(db *sql.DB, opts Options) *Store {
	if opts.Policy.Intervals == nil {
		opts.Policy = mastery.DefaultPolicy()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{db: db, policy: opts.Policy, resolver: opts.Resolver, logger: logger}
}

// WordID returns the canonical ID for an entry: the dictionary entry for
// its normalized form, then for its heuristic guess, else the normalized
// form itself.
func (s *Store) WordID(e tracker.Entry) string {
	if s.resolver != nil {
		if id, ok := s.resolver.ResolveWordID(e.WordNormalized); ok {
			return id
		}
		if e.WordGuess != "" && e.WordGuess != e.WordNormalized {
			if id, ok := s.resolver.ResolveWordID(e.WordGuess); ok {
				return id
			}
		}
	}
	return e.WordNormalized
}

// WriteUsage logs entries and folds them into the user's mastery records
// in one transaction. Entries whose ID is already logged are skipped, so a
// batch resent after an uncertain failure is counted once.
func (s *Store) WriteUsage(ctx context.Context, userID string, entries []tracker.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin usage tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	deltas := make(map[string]mastery.Delta)
	skipped := 0
	for _, e := range entries {
		if strings.TrimSpace(e.WordNormalized) == "" {
			skipped++
			continue
		}
		wordID := s.WordID(e)
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO usage_log
			(id, user_id, word_id, word_form_used, word_normalized, source, confidence, part_of_speech, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, userID, wordID, e.WordFormUsed, e.WordNormalized, e.Source.String(), e.Confidence,
			nullableString(e.PartOfSpeech), e.SeenAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("log usage %q: %w", e.WordNormalized, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			skipped++
			continue
		}
		d := mastery.Delta{SeenAt: e.SeenAt}
		if e.Source == tracker.Agent {
			d.AgentEncounters = 1
		} else {
			d.UserUses = 1
		}
		deltas[wordID] = deltas[wordID].Merge(d)
	}

	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		rec, _, err := getRecord(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if err := upsertRecord(ctx, tx, mastery.Apply(rec, deltas[id], s.policy)); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit usage batch (%d entries): %w", len(entries), err)
	}
	s.logger.Debug("stored usage", "user", userID, "entries", len(entries), "words", len(ids), "skipped", skipped)
	return nil
}

// Record returns the mastery record of wordID for userID.
func (s *Store) Record(ctx context.Context, userID, wordID string) (mastery.Record, bool, error) {
	return getRecord(ctx, s.db, userID, wordID)
}

// DueForReview returns records whose review time is at or before now,
// earliest first. Words never scheduled past their last sighting (level
// New) are included.
func (s *Store) DueForReview(ctx context.Context, userID string, now time.Time, limit int) ([]mastery.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM vocab_mastery
		WHERE user_id = ? AND next_review_at <= ?
		ORDER BY next_review_at, word_id LIMIT ?`, userID, now.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Stats summarises a user's vocabulary.
type Stats struct {
	Words       int
	Occurrences int
	ByLevel     map[mastery.Level]int
	// Top holds the most frequent words, most frequent first.
	Top []mastery.Record
}

// UsageStats returns totals per mastery level and the topN most frequent
// words.
func (s *Store) UsageStats(ctx context.Context, userID string, topN int) (Stats, error) {
	st := Stats{ByLevel: make(map[mastery.Level]int)}
	rows, err := s.db.QueryContext(ctx, `SELECT mastery_level, COUNT(*), COALESCE(SUM(frequency_total), 0)
		FROM vocab_mastery WHERE user_id = ? GROUP BY mastery_level`, userID)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var words, occ int
		if err := rows.Scan(&name, &words, &occ); err != nil {
			return st, err
		}
		level, err := mastery.ParseLevel(name)
		if err != nil {
			return st, err
		}
		st.ByLevel[level] += words
		st.Words += words
		st.Occurrences += occ
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	if topN > 0 {
		top, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM vocab_mastery
			WHERE user_id = ? ORDER BY frequency_total DESC, word_id LIMIT ?`, userID, topN)
		if err != nil {
			return st, err
		}
		defer top.Close()
		if st.Top, err = scanRecords(top); err != nil {
			return st, err
		}
	}
	return st, nil
}

const recordColumns = `user_id, word_id, frequency_total, user_usage_count, agent_encounter_count,
	last_seen_at, memory_strength, next_review_at, mastery_level`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (mastery.Record, error) {
	var r mastery.Record
	var lastSeen, nextReview int64
	var level string
	if err := sc.Scan(&r.UserID, &r.WordID, &r.FrequencyTotal, &r.UserUsageCount, &r.AgentEncounterCount,
		&lastSeen, &r.MemoryStrength, &nextReview, &level); err != nil {
		return r, err
	}
	r.LastSeenAt = fromMillis(lastSeen)
	r.NextReviewAt = fromMillis(nextReview)
	var err error
	r.Level, err = mastery.ParseLevel(level)
	return r, err
}

func scanRecords(rows *sql.Rows) ([]mastery.Record, error) {
	var out []mastery.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// getRecord returns the stored record, or a fresh one for the pair and
// false when none exists.
func getRecord(ctx context.Context, db DBExecutor, userID, wordID string) (mastery.Record, bool, error) {
	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM vocab_mastery WHERE user_id = ? AND word_id = ?`, userID, wordID)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return mastery.Record{UserID: userID, WordID: wordID}, false, nil
	}
	if err != nil {
		return r, false, fmt.Errorf("get mastery %s/%s: %w", userID, wordID, err)
	}
	return r, true, nil
}

func upsertRecord(ctx context.Context, db DBExecutor, r mastery.Record) error {
	_, err := db.ExecContext(ctx, `INSERT INTO vocab_mastery (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, word_id) DO UPDATE SET
		  frequency_total = excluded.frequency_total,
		  user_usage_count = excluded.user_usage_count,
		  agent_encounter_count = excluded.agent_encounter_count,
		  last_seen_at = excluded.last_seen_at,
		  memory_strength = excluded.memory_strength,
		  next_review_at = excluded.next_review_at,
		  mastery_level = excluded.mastery_level`,
		r.UserID, r.WordID, r.FrequencyTotal, r.UserUsageCount, r.AgentEncounterCount,
		r.LastSeenAt.UnixMilli(), r.MemoryStrength, r.NextReviewAt.UnixMilli(), r.Level.String())
	if err != nil {
		return fmt.Errorf("upsert mastery %s/%s: %w", r.UserID, r.WordID, err)
	}
	return nil
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// nullableString returns nil for "" so optional columns stay NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
