// Package refund computes how much credit returns to the buyer when a
// provisioned order is torn down early. The calculation is pure: callers
// pass the clock reading and a snapshot of the order and resource state.
package refund

import (
	"time"

	"github.com/shopspring/decimal"
)

// Window is how long after purchase an order stays refundable.
const Window = 24 * time.Hour

// Input is everything the proration needs. TotalDays and QuotaGB come from
// the order's plan snapshot, not from the live plan row.
type Input struct {
	Price          decimal.Decimal
	OrderCreatedAt time.Time

	// OnHold means activation was deferred and the resource never started.
	OnHold bool

	ExpireAt  *time.Time
	TotalDays int
	QuotaGB   decimal.Decimal
	UsedGB    decimal.Decimal
}

type Calculator struct {
	window time.Duration
}

func NewCalculator() Calculator {
	return Calculator{window: Window}
}

// Calculate returns the refund amount and whether the order is eligible at
// all. Outside the window nothing is refunded. A resource that never started
// refunds in full. Otherwise the payout is price times the lesser of the
// unused-time and unused-data ratios, rounded to two decimal places with
// banker's rounding.
func (c Calculator) Calculate(now time.Time, in Input) (decimal.Decimal, bool) {
	if now.Sub(in.OrderCreatedAt) > c.window {
		return decimal.Zero, false
	}

	if in.OnHold {
		return in.Price.RoundBank(2), true
	}

	timeRatio := decimal.NewFromInt(1)
	if in.ExpireAt != nil {
		daysRemaining := int(in.ExpireAt.Sub(now).Hours() / 24)
		if daysRemaining < 0 {
			daysRemaining = 0
		}
		totalDays := in.TotalDays
		if totalDays <= 0 {
			totalDays = 30
		}
		timeRatio = decimal.NewFromInt(int64(daysRemaining)).
			Div(decimal.NewFromInt(int64(totalDays)))
		if timeRatio.GreaterThan(decimal.NewFromInt(1)) {
			timeRatio = decimal.NewFromInt(1)
		}
	}

	quota := in.QuotaGB
	if !quota.IsPositive() {
		quota = decimal.NewFromInt(1)
	}
	remaining := quota.Sub(in.UsedGB)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	dataRatio := remaining.Div(quota)

	ratio := timeRatio
	if dataRatio.LessThan(ratio) {
		ratio = dataRatio
	}

	return in.Price.Mul(ratio).RoundBank(2), true
}
