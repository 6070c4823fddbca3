package membership

import (
	"cmp"
	"slices"

	"github.com/makerspace/makeradmin/internal/models"
)

// AssemblePeriods merges spans into periods. Spans of one type, ordered by start date, are
// connected when the next starts at most one day after the current period ends. Deleted
// spans are skipped. Periods are ordered by type and then by start date.
func AssemblePeriods(spans []models.Span) []models.Period {
	live := make([]models.Span, 0, len(spans))
	for _, sp := range spans {
		if sp.DeletedAt == nil {
			live = append(live, sp)
		}
	}
	slices.SortFunc(live, func(a, b models.Span) int {
		if c := cmp.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		return a.StartDate.Compare(b.StartDate.Time)
	})

	periods := make([]models.Period, 0)
	for _, sp := range live {
		if n := len(periods); n > 0 {
			cur := &periods[n-1]
			if cur.Type == sp.Type && !sp.StartDate.After(cur.End.AddDays(1)) {
				if sp.EndDate.After(cur.End) {
					cur.End = sp.EndDate
				}
				continue
			}
		}
		periods = append(periods, models.Period{Type: sp.Type, Start: sp.StartDate, End: sp.EndDate})
	}
	return periods
}
