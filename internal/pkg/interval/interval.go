package interval

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/apperror"
)

var ErrInvalidRange = apperror.New(http.StatusBadRequest, "start time must be before end time")

// Interval is a half-open time range [Start, End).
// All overlap math in the system goes through this type so that the
// "touching endpoints do not conflict" rule lives in exactly one place.
type Interval struct {
	Start time.Time
	End   time.Time
}

// New validates start < end and returns the interval normalized to UTC.
func New(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, ErrInvalidRange
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether iv and other share any instant.
// Half-open semantics: iv.End == other.Start is not an overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Minutes returns the interval length in whole minutes.
func (iv Interval) Minutes() int {
	return int(iv.Duration() / time.Minute)
}

// Weekday returns the UTC weekday of the interval's start.
func (iv Interval) Weekday() time.Weekday {
	return iv.Start.UTC().Weekday()
}

// CrossesMidnight reports whether the interval spans more than one UTC date.
func (iv Interval) CrossesMidnight() bool {
	return iv.Start.UTC().Truncate(24*time.Hour) != iv.End.UTC().Add(-time.Nanosecond).Truncate(24*time.Hour)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}

// MinuteOfDay returns the number of minutes past UTC midnight of t.
func MinuteOfDay(t time.Time) int {
	t = t.UTC()
	return t.Hour()*60 + t.Minute()
}

// At returns the UTC instant on t's date at m minutes past midnight.
func At(day time.Time, m int) time.Time {
	day = day.UTC()
	return time.Date(day.Year(), day.Month(), day.Day(), m/60, m%60, 0, 0, time.UTC)
}
