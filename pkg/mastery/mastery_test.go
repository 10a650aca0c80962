package mastery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBoundaries(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		total, user int
		want        Level
	}{
		{0, 0, New},
		{1, 1, New},
		{2, 0, Learning},
		{5, 3, Familiar},
		{5, 2, Learning},
		{10, 8, Mastered},
		{10, 7, Familiar},
		{10, 5, Learning},
		{9, 9, Familiar},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Classify(tt.total, tt.user), "Classify(%d, %d)", tt.total, tt.user)
	}
}

func TestApplySingleOccurrence(t *testing.T) {
	p := DefaultPolicy()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rec := Apply(Record{UserID: "u", WordID: "w"}, Delta{UserUses: 1, SeenAt: now}, p)
	assert.Equal(t, 1, rec.FrequencyTotal)
	assert.Equal(t, 1, rec.UserUsageCount)
	assert.Equal(t, 0, rec.AgentEncounterCount)
	assert.Equal(t, New, rec.Level)
	assert.Equal(t, now, rec.LastSeenAt)
	assert.Equal(t, now, rec.NextReviewAt)
	assert.InDelta(t, 1.0, rec.MemoryStrength, 1e-9)

	rec = Apply(rec, Delta{AgentEncounters: 1, SeenAt: now.Add(time.Hour)}, p)
	assert.Equal(t, Learning, rec.Level)
	assert.Equal(t, now.Add(time.Hour+24*time.Hour), rec.NextReviewAt)
	assert.InDelta(t, 1.5, rec.MemoryStrength, 1e-9)
}

func TestApplyEmptyDeltaIsNoop(t *testing.T) {
	rec := Record{FrequencyTotal: 3, Level: Learning}
	assert.Equal(t, rec, Apply(rec, Delta{SeenAt: time.Now()}, DefaultPolicy()))
}

func TestApplyOrderInsensitive(t *testing.T) {
	p := DefaultPolicy()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	deltas := []Delta{
		{UserUses: 1, SeenAt: base.Add(3 * time.Minute)},
		{AgentEncounters: 2, SeenAt: base.Add(time.Minute)},
		{UserUses: 4, SeenAt: base.Add(9 * time.Minute)},
		{UserUses: 1, AgentEncounters: 1, SeenAt: base.Add(2 * time.Minute)},
		{UserUses: 3, SeenAt: base},
	}

	forward := Record{}
	for _, d := range deltas {
		forward = Apply(forward, d, p)
	}
	backward := Record{}
	for i := len(deltas) - 1; i >= 0; i-- {
		backward = Apply(backward, deltas[i], p)
	}
	merged := Delta{}
	for _, d := range deltas {
		merged = merged.Merge(d)
	}
	once := Apply(Record{}, merged, p)

	assert.Equal(t, forward, backward)
	assert.Equal(t, forward, once)
	assert.Equal(t, 12, forward.FrequencyTotal)
	assert.Equal(t, 9, forward.UserUsageCount)
	assert.Equal(t, Familiar, forward.Level)
	assert.Equal(t, base.Add(9*time.Minute), forward.LastSeenAt)
}

func TestNextReviewNotBeforeLastSeen(t *testing.T) {
	p := DefaultPolicy()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := Record{}
	for i := range 20 {
		rec = Apply(rec, Delta{UserUses: 1, SeenAt: now.Add(time.Duration(i) * time.Second)}, p)
		assert.False(t, rec.NextReviewAt.Before(rec.LastSeenAt))
	}
	assert.Equal(t, Mastered, rec.Level)
	assert.Equal(t, rec.LastSeenAt.Add(7*24*time.Hour), rec.NextReviewAt)
}

func TestParseLevel(t *testing.T) {
	for _, l := range []Level{New, Learning, Familiar, Mastered} {
		got, err := ParseLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}
	_, err := ParseLevel("expert")
	assert.Error(t, err)
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.Familiar.MinTotal = 20
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.Intervals[Mastered] = time.Hour
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.Mastered.MinUserRatio = 1.5
	assert.Error(t, p.Validate())
}
