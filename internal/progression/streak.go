package progression

import (
	"time"

	"github.com/classquest/classquest/internal/identity"
)

// nextStreak applies the streak transition rule for an activity on dateKey.
// Same day is a no-op, the next consecutive day increments, any gap (or no
// prior activity) resets to 1. Longest tracks the historical maximum. The
// second return reports whether the streak record changed.
func nextStreak(st identity.Streak, dateKey string) (identity.Streak, bool) {
	if st.LastMissionDate == dateKey {
		return st, false
	}
	if daysBetween(st.LastMissionDate, dateKey) == 1 {
		st.Current++
	} else {
		st.Current = 1
	}
	if st.Current > st.Longest {
		st.Longest = st.Current
	}
	st.LastMissionDate = dateKey
	return st, true
}

// daysBetween returns the calendar-day difference between two date keys, or
// 0 when either fails to parse (treated as a reset by the caller).
func daysBetween(from, to string) int {
	a, err := time.Parse("2006-01-02", from)
	if err != nil {
		return 0
	}
	b, err := time.Parse("2006-01-02", to)
	if err != nil {
		return 0
	}
	return int(b.Sub(a) / (24 * time.Hour))
}
