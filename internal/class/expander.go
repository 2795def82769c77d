package class

import (
	"time"

	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/interval"
)

// candidateIntervals generates the dated intervals a template produces
// between rangeStart and rangeEnd inclusive: the first date on or
// after rangeStart matching the template's weekday, then 7-day steps.
// Times are minutes past UTC midnight of each candidate date.
func candidateIntervals(t *Template, rangeStart, rangeEnd time.Time) []interval.Interval {
	day := time.Date(rangeStart.Year(), rangeStart.Month(), rangeStart.Day(), 0, 0, 0, 0, time.UTC)
	for day.Weekday() != t.Weekday {
		day = day.AddDate(0, 0, 1)
	}

	var out []interval.Interval
	for !day.After(rangeEnd) {
		start := interval.At(day, t.StartMin)
		iv, err := interval.New(start, start.Add(time.Duration(t.DurationMin)*time.Minute))
		if err != nil {
			return nil
		}
		out = append(out, iv)
		day = day.AddDate(0, 0, 7)
	}
	return out
}
