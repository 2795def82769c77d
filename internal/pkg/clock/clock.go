package clock

import "time"

// Clock is the time source injected into services so that interval
// validation and expiry checks stay deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System is the real clock. It always reports UTC.
var System Clock = systemClock{}

// Fixed returns a clock frozen at t. For tests.
func Fixed(t time.Time) Clock { return fixedClock(t.UTC()) }

type fixedClock time.Time

func (f fixedClock) Now() time.Time { return time.Time(f) }
