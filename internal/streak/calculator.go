package streak

import (
	"sort"
	"time"
)

// Status represents the attendance outcome recorded for a single day.
type Status string

const (
	// StatusPresent indicates the participant attended the session.
	StatusPresent Status = "Present"
	// StatusAbsent indicates the participant was absent without excuse.
	StatusAbsent Status = "Absent"
	// StatusMissed indicates no explicit mark was recorded for the participant.
	StatusMissed Status = "Missed"
	// StatusNotAvailable indicates an excused absence with a stated reason.
	StatusNotAvailable Status = "NotAvailable"
)

// Qualifies reports whether the status keeps a streak alive. An excused
// absence counts the same as presence.
func (s Status) Qualifies() bool {
	return s == StatusPresent || s == StatusNotAvailable
}

// Entry pairs a calendar day with the attendance status recorded for it.
// Entries need not be pre-sorted; only the date components of Day are used.
type Entry struct {
	Day    time.Time
	Status Status
}

// Calculator computes consecutive-attendance streaks over a workweek with one
// recurring off-day.
type Calculator struct {
	offDay time.Weekday
}

// NewCalculator constructs a Calculator for a workweek whose recurring off-day
// is the provided weekday. The observed product behavior uses a
// Monday-Saturday workweek with Sunday off.
func NewCalculator(offDay time.Weekday) *Calculator {
	if offDay < time.Sunday || offDay > time.Saturday {
		offDay = time.Sunday
	}
	return &Calculator{offDay: offDay}
}

// OffDay returns the configured recurring off-day.
func (c *Calculator) OffDay() time.Weekday {
	if c == nil {
		return time.Sunday
	}
	return c.offDay
}

// Consecutive returns the length of the active streak ending at today or the
// most recent qualifying day before it.
//
// The calculation:
//  1. Keeps only qualifying entries (Present, NotAvailable) that do not fall
//     on the off-day.
//  2. Tolerates a gap of one day between today and the latest qualifying day,
//     or two days when today is the first day after the off-day.
//  3. Walks backwards through the history: a one-day step extends the streak,
//     and a two-day step extends it only when the skipped day is the off-day.
//     Any other gap ends the walk.
//
// A broken streak is 0. The function is pure and safe for concurrent use.
func (c *Calculator) Consecutive(history []Entry, today time.Time) int {
	if c == nil || len(history) == 0 {
		return 0
	}

	days := c.qualifyingDays(history)
	if len(days) == 0 {
		return 0
	}

	ref := truncateToDay(today)
	latest := days[0]

	tolerance := 1
	if ref.Weekday() == dayAfter(c.offDay) {
		// Today follows the off-day, so the off-day itself may sit in the gap.
		tolerance = 2
	}

	gap := daysBetween(latest, ref)
	if gap < 0 || gap > tolerance {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		step := daysBetween(days[i], days[i-1])
		switch {
		case step == 1:
			streak++
		case step == 2 && days[i].AddDate(0, 0, 1).Weekday() == c.offDay:
			streak++
		default:
			return streak
		}
	}

	return streak
}

// qualifyingDays filters, deduplicates and sorts the history, most recent
// first, as midnight-normalized days.
func (c *Calculator) qualifyingDays(history []Entry) []time.Time {
	seen := make(map[time.Time]struct{}, len(history))
	days := make([]time.Time, 0, len(history))

	for _, entry := range history {
		if !entry.Status.Qualifies() {
			continue
		}
		day := truncateToDay(entry.Day)
		if day.Weekday() == c.offDay {
			continue
		}
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].After(days[j])
	})
	return days
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the number of calendar days from earlier to later.
func daysBetween(earlier, later time.Time) int {
	return int(later.Sub(earlier) / (24 * time.Hour))
}

func dayAfter(day time.Weekday) time.Weekday {
	return (day + 1) % 7
}
