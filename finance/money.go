package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	five    = decimal.NewFromInt(5)
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
	half    = decimal.New(5, -1)

	// WriteBackTolerance is the largest stored-vs-recomputed payout drift
	// ignored at read time; anything above one cent gets written back.
	WriteBackTolerance = decimal.New(1, -2)
)

// RoundMoney rounds to 2 decimal places, half up: a tie moves toward
// positive infinity regardless of sign, so -10.005 becomes -10.00.
// Applied exactly once, at the end of a fold, never per line item.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	shifted := d.Shift(2)
	floor := shifted.Floor()
	if shifted.Sub(floor).Cmp(half) >= 0 {
		floor = floor.Add(one)
	}
	return floor.Shift(-2)
}

// CeilToFive snaps an amount up to the next multiple of $5.
func CeilToFive(d decimal.Decimal) decimal.Decimal {
	return d.Div(five).Ceil().Mul(five)
}

// ReverseCleaningFee removes the management markup embedded in a guest-paid
// cleaning fee and snaps the result up to the nearest $5:
// ceil((guestPaid / (1 + pct/100)) / 5) * 5.
func ReverseCleaningFee(guestPaid, pmFeePercentage decimal.Decimal) decimal.Decimal {
	if guestPaid.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	divisor := one.Add(pmFeePercentage.Div(hundred))
	return CeilToFive(guestPaid.Div(divisor))
}

// dayStart truncates to 00:00:00 in the value's location. All statement date
// comparisons happen at day granularity.
func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// dayEnd is the 23:59:59 boundary used for waiver expiry checks.
func dayEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
