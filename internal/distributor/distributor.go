// internal/distributor/distributor.go
package distributor

import (
	"sort"
	"time"

	"content-scheduler/internal/common/errors"
	"content-scheduler/internal/models"
)

// Slot is one proposed publication slot inside a cycle window.
type Slot struct {
	Date time.Time
	Time string
}

// Options tune how slots are spread across the window. The zero value gives
// an even spread at the default publication time.
type Options struct {
	// PreferredWeekdays, when non-empty, shifts each slot forward to the
	// nearest preferred weekday (capped at the window end).
	PreferredWeekdays []time.Weekday
	// AvoidWeekends shifts Saturday/Sunday slots to the following Monday.
	// Ignored when PreferredWeekdays is set.
	AvoidWeekends bool
	// TimeOfDay is the wall-clock "HH:MM" for every slot; defaults to 09:00.
	TimeOfDay string
	// RankingScore, when non-empty, replaces each candidate with the
	// highest-scoring weekday inside the candidate's stride window. Unlisted
	// weekdays score zero; ties keep the earliest day.
	RankingScore map[time.Weekday]int
}

// Distribute spreads count slots evenly across [windowStart, windowEnd],
// both inclusive. The first slot always lands on windowStart; the stride is
// the inclusive day span divided by count, floored at one day. Dates never
// escape the window: once the walk reaches windowEnd, remaining slots pile
// up there rather than spill into the next cycle.
func Distribute(windowStart, windowEnd time.Time, count int, opts Options) ([]Slot, error) {
	start := models.DateOnly(windowStart)
	end := models.DateOnly(windowEnd)

	if end.Before(start) {
		return nil, errors.NewValidationError("window end precedes window start")
	}
	if count < 0 {
		return nil, errors.NewValidationError("slot count must be non-negative")
	}
	if count == 0 {
		return []Slot{}, nil
	}

	timeOfDay := opts.TimeOfDay
	if timeOfDay == "" {
		timeOfDay = models.DefaultScheduledTime
	}
	if !models.ValidClockTime(timeOfDay) {
		return nil, errors.NewValidationError("timeOfDay must be HH:MM, got " + timeOfDay)
	}

	span := models.DaysBetween(start, end)
	stride := span / count
	if stride < 1 {
		stride = 1
	}

	slots := make([]Slot, 0, count)
	cursor := start
	for i := 0; i < count; i++ {
		d := adjust(cursor, end, opts)
		if len(opts.RankingScore) > 0 {
			d = bestRanked(d, end, stride, opts.RankingScore)
		}
		slots = append(slots, Slot{Date: d, Time: timeOfDay})

		// Advance from the emitted date, not the raw cursor, so weekday
		// shifts do not compress later gaps below the stride.
		cursor = d.AddDate(0, 0, stride)
		if cursor.After(end) {
			cursor = end
		}
	}
	return slots, nil
}

// adjust applies weekday preferences to a candidate date, clamped to end.
func adjust(d, end time.Time, opts Options) time.Time {
	if len(opts.PreferredWeekdays) > 0 {
		return nearestPreferred(d, end, opts.PreferredWeekdays)
	}
	if opts.AvoidWeekends && models.IsWeekend(d) {
		shifted := d
		for models.IsWeekend(shifted) {
			shifted = shifted.AddDate(0, 0, 1)
		}
		if shifted.After(end) {
			return end
		}
		return shifted
	}
	return d
}

func nearestPreferred(d, end time.Time, weekdays []time.Weekday) time.Time {
	preferred := make(map[time.Weekday]bool, len(weekdays))
	for _, w := range weekdays {
		preferred[w] = true
	}
	shifted := d
	for i := 0; i < 7; i++ {
		if preferred[shifted.Weekday()] {
			break
		}
		shifted = shifted.AddDate(0, 0, 1)
	}
	if shifted.After(end) {
		return end
	}
	return shifted
}

// bestRanked scans the stride window starting at d and returns the day with
// the highest ranking score, never past end.
func bestRanked(d, end time.Time, stride int, scores map[time.Weekday]int) time.Time {
	best := d
	bestScore := scores[d.Weekday()]
	for i := 1; i < stride; i++ {
		cand := d.AddDate(0, 0, i)
		if cand.After(end) {
			break
		}
		if s := scores[cand.Weekday()]; s > bestScore {
			best, bestScore = cand, s
		}
	}
	return best
}

// NextFreeSlot walks forward from the requested date until it finds a day
// inside the window not already present in taken. Used when re-spreading
// around existing allocations.
func NextFreeSlot(requested, windowEnd time.Time, taken []time.Time) (time.Time, bool) {
	used := make(map[time.Time]bool, len(taken))
	for _, t := range taken {
		used[models.DateOnly(t)] = true
	}
	for d := models.DateOnly(requested); !d.After(models.DateOnly(windowEnd)); d = d.AddDate(0, 0, 1) {
		if !used[d] {
			return d, true
		}
	}
	return time.Time{}, false
}

// SortSlots orders slots chronologically, breaking date ties by time.
func SortSlots(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		return slots[i].Time < slots[j].Time
	})
}
