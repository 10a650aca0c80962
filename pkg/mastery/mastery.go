// Package mastery holds the vocabulary mastery record and the rule that
// folds usage into it.
//
// Apply is a pure function. Folding a set of deltas gives the same record
// whatever order or grouping they arrive in, so batched and retried writes
// converge on one state.
package mastery

import (
	"fmt"
	"strings"
	"time"
)

// Level is a coarse mastery stage.
type Level int

const (
	New Level = iota
	Learning
	Familiar
	Mastered
)

func (l Level) String() string {
	switch l {
	case Learning:
		return "learning"
	case Familiar:
		return "familiar"
	case Mastered:
		return "mastered"
	default:
		return "new"
	}
}

// ParseLevel is the inverse of Level.String.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "new", "":
		return New, nil
	case "learning":
		return Learning, nil
	case "familiar":
		return Familiar, nil
	case "mastered":
		return Mastered, nil
	}
	return New, fmt.Errorf("mastery: unknown level %q", s)
}

// Threshold is the minimum total count and user ratio for a level.
type Threshold struct {
	MinTotal     int
	MinUserRatio float64
}

// Policy holds the tunable numbers of the mastery rule.
type Policy struct {
	Mastered Threshold
	Familiar Threshold
	Learning Threshold

	// Intervals maps each level to its review delay. A missing or zero
	// entry schedules the review at lastSeenAt.
	Intervals map[Level]time.Duration

	UserWeight  float64
	AgentWeight float64
}

// DefaultPolicy returns the stock thresholds and a 0/1/3/7 day schedule.
func DefaultPolicy() Policy {
	return Policy{
		Mastered: Threshold{MinTotal: 10, MinUserRatio: 0.8},
		Familiar: Threshold{MinTotal: 5, MinUserRatio: 0.6},
		Learning: Threshold{MinTotal: 2},
		Intervals: map[Level]time.Duration{
			New:      0,
			Learning: 24 * time.Hour,
			Familiar: 72 * time.Hour,
			Mastered: 168 * time.Hour,
		},
		UserWeight:  1.0,
		AgentWeight: 0.5,
	}
}

// Validate reports thresholds or intervals that are out of order.
func (p Policy) Validate() error {
	if p.Learning.MinTotal < 0 || p.Familiar.MinTotal < p.Learning.MinTotal || p.Mastered.MinTotal < p.Familiar.MinTotal {
		return fmt.Errorf("mastery: thresholds must be non-decreasing (learning %d, familiar %d, mastered %d)",
			p.Learning.MinTotal, p.Familiar.MinTotal, p.Mastered.MinTotal)
	}
	for _, t := range []Threshold{p.Learning, p.Familiar, p.Mastered} {
		if t.MinUserRatio < 0 || t.MinUserRatio > 1 {
			return fmt.Errorf("mastery: user ratio %v out of range [0,1]", t.MinUserRatio)
		}
	}
	prev := time.Duration(0)
	for _, l := range []Level{New, Learning, Familiar, Mastered} {
		d := p.Intervals[l]
		if d < prev {
			return fmt.Errorf("mastery: review interval for %s (%s) shorter than the level below", l, d)
		}
		prev = d
	}
	if p.UserWeight < 0 || p.AgentWeight < 0 {
		return fmt.Errorf("mastery: negative strength weight")
	}
	return nil
}

// Classify derives the level from counts.
func (p Policy) Classify(total, user int) Level {
	if total <= 0 {
		return New
	}
	ratio := float64(user) / float64(total)
	switch {
	case total >= p.Mastered.MinTotal && ratio >= p.Mastered.MinUserRatio:
		return Mastered
	case total >= p.Familiar.MinTotal && ratio >= p.Familiar.MinUserRatio:
		return Familiar
	case total >= p.Learning.MinTotal:
		return Learning
	}
	return New
}

// ReviewInterval returns the delay before the next review at level l.
func (p Policy) ReviewInterval(l Level) time.Duration {
	return p.Intervals[l]
}

// Record is the mastery state of one word for one user.
type Record struct {
	UserID              string
	WordID              string
	FrequencyTotal      int
	UserUsageCount      int
	AgentEncounterCount int
	LastSeenAt          time.Time
	MemoryStrength      float64
	NextReviewAt        time.Time
	Level               Level
}

// Delta is the increment contributed by one or more occurrences.
type Delta struct {
	UserUses        int
	AgentEncounters int
	// SeenAt is the latest occurrence in the delta.
	SeenAt time.Time
}

// Total returns the number of occurrences in d.
func (d Delta) Total() int {
	return d.UserUses + d.AgentEncounters
}

// Merge combines two deltas.
func (d Delta) Merge(o Delta) Delta {
	out := Delta{
		UserUses:        d.UserUses + o.UserUses,
		AgentEncounters: d.AgentEncounters + o.AgentEncounters,
		SeenAt:          d.SeenAt,
	}
	if o.SeenAt.After(out.SeenAt) {
		out.SeenAt = o.SeenAt
	}
	return out
}

// Apply folds d into rec. Counts and strength add up, LastSeenAt takes the
// later of the two times, and the level and next review are recomputed
// from the result rather than accumulated.
func Apply(rec Record, d Delta, p Policy) Record {
	if d.Total() <= 0 {
		return rec
	}
	rec.FrequencyTotal += d.Total()
	rec.UserUsageCount += d.UserUses
	rec.AgentEncounterCount += d.AgentEncounters
	rec.MemoryStrength += float64(d.UserUses)*p.UserWeight + float64(d.AgentEncounters)*p.AgentWeight
	if d.SeenAt.After(rec.LastSeenAt) {
		rec.LastSeenAt = d.SeenAt
	}
	rec.Level = p.Classify(rec.FrequencyTotal, rec.UserUsageCount)
	rec.NextReviewAt = rec.LastSeenAt.Add(p.ReviewInterval(rec.Level))
	return rec
}
