package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/japaniel/yomigana/pkg/mastery"
	"github.com/japaniel/yomigana/pkg/tracker"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func entry(word string, src tracker.Source, at time.Time) tracker.Entry {
	return tracker.Entry{
		ID:             uuid.NewString(),
		WordFormUsed:   word,
		WordNormalized: word,
		Source:         src,
		Confidence:     1,
		SeenAt:         at,
	}
}

type mapResolver map[string]string

func (m mapResolver) ResolveWordID(word string) (string, bool) {
	id, ok := m[word]
	return id, ok
}

func TestWriteUsageCreatesRecord(t *testing.T) {
	db := setupTestDB(t)
	s := New(db, Options{})
	ctx := context.Background()

	batch := []tracker.Entry{
		entry("猫", tracker.User, t0),
		entry("猫", tracker.Agent, t0.Add(time.Minute)),
		entry("犬", tracker.User, t0),
	}
	if err := s.WriteUsage(ctx, "u1", batch); err != nil {
		t.Fatalf("write usage: %v", err)
	}

	rec, ok, err := s.Record(ctx, "u1", "猫")
	if err != nil || !ok {
		t.Fatalf("record: ok=%v err=%v", ok, err)
	}
	if rec.FrequencyTotal != 2 || rec.UserUsageCount != 1 || rec.AgentEncounterCount != 1 {
		t.Fatalf("unexpected counts: %+v", rec)
	}
	if rec.Level != mastery.Learning {
		t.Fatalf("expected learning, got %s", rec.Level)
	}
	if !rec.LastSeenAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("last seen = %v", rec.LastSeenAt)
	}
	if !rec.NextReviewAt.Equal(t0.Add(time.Minute + 24*time.Hour)) {
		t.Fatalf("next review = %v", rec.NextReviewAt)
	}
	if rec.MemoryStrength != 1.5 {
		t.Fatalf("memory strength = %v", rec.MemoryStrength)
	}

	if _, ok, err := s.Record(ctx, "u2", "猫"); err != nil || ok {
		t.Fatalf("other user should have no record: ok=%v err=%v", ok, err)
	}
}

func TestWriteUsageIsIdempotentPerEntry(t *testing.T) {
	db := setupTestDB(t)
	s := New(db, Options{})
	ctx := context.Background()

	batch := []tracker.Entry{entry("本", tracker.User, t0), entry("本", tracker.User, t0)}
	for i := 0; i < 3; i++ {
		if err := s.WriteUsage(ctx, "u1", batch); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	batch = append(batch, entry("本", tracker.Agent, t0.Add(time.Second)))
	if err := s.WriteUsage(ctx, "u1", batch); err != nil {
		t.Fatalf("write with new entry: %v", err)
	}

	rec, _, err := s.Record(ctx, "u1", "本")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.FrequencyTotal != 3 {
		t.Fatalf("expected 3 occurrences after resends, got %d", rec.FrequencyTotal)
	}
	var logged int
	if err := db.QueryRow(`SELECT COUNT(*) FROM usage_log`).Scan(&logged); err != nil {
		t.Fatalf("count log: %v", err)
	}
	if logged != 3 {
		t.Fatalf("expected 3 log rows, got %d", logged)
	}
}

func TestMasteryBoundaryThroughStore(t *testing.T) {
	db := setupTestDB(t)
	s := New(db, Options{})
	ctx := context.Background()

	var batch []tracker.Entry
	for i := 0; i < 8; i++ {
		batch = append(batch, entry("話す", tracker.User, t0))
	}
	batch = append(batch, entry("話す", tracker.Agent, t0), entry("話す", tracker.Agent, t0))
	// Split across batches to show boundaries do not matter.
	if err := s.WriteUsage(ctx, "u1", batch[:3]); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteUsage(ctx, "u1", batch[3:]); err != nil {
		t.Fatal(err)
	}
	rec, _, err := s.Record(ctx, "u1", "話す")
	if err != nil {
		t.Fatal(err)
	}
	if rec.FrequencyTotal != 10 || rec.Level != mastery.Mastered {
		t.Fatalf("expected mastered at 10/8, got %d %s", rec.FrequencyTotal, rec.Level)
	}
}

func TestWordIDResolution(t *testing.T) {
	db := setupTestDB(t)
	s := New(db, Options{Resolver: mapResolver{"食べる": "1358280"}})
	ctx := context.Background()

	exact := entry("食べる", tracker.User, t0)
	guessed := entry("食べました", tracker.User, t0)
	guessed.WordGuess = "食べる"
	unknown := entry("ぴえん", tracker.User, t0)

	if err := s.WriteUsage(ctx, "u1", []tracker.Entry{exact, guessed, unknown}); err != nil {
		t.Fatal(err)
	}
	rec, ok, err := s.Record(ctx, "u1", "1358280")
	if err != nil || !ok {
		t.Fatalf("resolved record: ok=%v err=%v", ok, err)
	}
	if rec.FrequencyTotal != 2 {
		t.Fatalf("expected both forms on one word id, got %d", rec.FrequencyTotal)
	}
	if _, ok, _ := s.Record(ctx, "u1", "ぴえん"); !ok {
		t.Fatal("unresolved word should fall back to its normalized form")
	}
}

func TestWriteUsageSkipsBlankWords(t *testing.T) {
	db := setupTestDB(t)
	s := New(db, Options{})
	if err := s.WriteUsage(context.Background(), "u1", []tracker.Entry{entry(" ", tracker.User, t0)}); err != nil {
		t.Fatal(err)
	}
	st, err := s.UsageStats(context.Background(), "u1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if st.Words != 0 {
		t.Fatalf("expected no words, got %d", st.Words)
	}
}

func TestDueForReview(t *testing.T) {
	db := setupTestDB(t)
	s := New(db, Options{})
	ctx := context.Background()

	batch := []tracker.Entry{
		entry("一", tracker.User, t0),
		entry("二", tracker.User, t0),
		entry("二", tracker.User, t0.Add(time.Hour)),
	}
	if err := s.WriteUsage(ctx, "u1", batch); err != nil {
		t.Fatal(err)
	}

	due, err := s.DueForReview(ctx, "u1", t0.Add(2*time.Hour), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].WordID != "一" {
		t.Fatalf("expected only the new word due, got %+v", due)
	}

	due, err = s.DueForReview(ctx, "u1", t0.Add(48*time.Hour), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 2 || due[0].WordID != "一" || due[1].WordID != "二" {
		t.Fatalf("expected both words due in review order, got %+v", due)
	}
}

func TestUsageStats(t *testing.T) {
	db := setupTestDB(t)
	s := New(db, Options{})
	ctx := context.Background()

	var batch []tracker.Entry
	for i := 0; i < 5; i++ {
		batch = append(batch, entry("水", tracker.User, t0))
	}
	batch = append(batch, entry("火", tracker.Agent, t0), entry("火", tracker.Agent, t0), entry("木", tracker.User, t0))
	if err := s.WriteUsage(ctx, "u1", batch); err != nil {
		t.Fatal(err)
	}

	st, err := s.UsageStats(ctx, "u1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if st.Words != 3 || st.Occurrences != 8 {
		t.Fatalf("unexpected totals: %+v", st)
	}
	if st.ByLevel[mastery.Familiar] != 1 || st.ByLevel[mastery.Learning] != 1 || st.ByLevel[mastery.New] != 1 {
		t.Fatalf("unexpected level counts: %v", st.ByLevel)
	}
	if len(st.Top) != 2 || st.Top[0].WordID != "水" || st.Top[1].WordID != "火" {
		t.Fatalf("unexpected top words: %+v", st.Top)
	}
}

func TestTrackerWritesThroughStore(t *testing.T) {
	db := setupTestDB(t)
	s := New(db, Options{})
	ctx := context.Background()

	tr := tracker.New(s, nil, tracker.Options{UserID: "u1", Capacity: 4})
	for i := 0; i < 10; i++ {
		if err := tr.Record(ctx, "勉強", tracker.User); err != nil {
			t.Fatal(err)
		}
	}
	if err := tr.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	rec, _, err := s.Record(ctx, "u1", "勉強")
	if err != nil {
		t.Fatal(err)
	}
	if rec.FrequencyTotal != 10 || rec.Level != mastery.Mastered {
		t.Fatalf("unexpected record: %+v", rec)
	}
}
