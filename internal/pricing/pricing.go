// Package pricing computes reservation amounts from billing rules and
// interval durations. All amounts are fixed-point decimals rounded to
// two places; intervals reaching here have already passed start < end
// validation, so durations are strictly positive.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/interval"
)

var (
	sixty = decimal.NewFromInt(60)
	two   = decimal.NewFromInt(2)
)

// ForCourt prices a court booking at hourlyRate per hour, fractional
// hours allowed (a 90-minute booking costs 1.5x the rate).
func ForCourt(hourlyRate decimal.Decimal, iv interval.Interval) decimal.Decimal {
	minutes := decimal.NewFromInt(int64(iv.Minutes()))
	return hourlyRate.Mul(minutes).Div(sixty).Round(2)
}

// ForSession prices a personal session by 30-minute blocks, rounding
// the duration up to the next block: blocks * hourlyRate / 2.
func ForSession(hourlyRate decimal.Decimal, iv interval.Interval) decimal.Decimal {
	blocks := int64((iv.Minutes() + 29) / 30)
	return hourlyRate.Mul(decimal.NewFromInt(blocks)).Div(two).Round(2)
}

// ForClass prices one class enrollment at the template's fixed unit
// price, independent of duration.
func ForClass(unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Round(2)
}
