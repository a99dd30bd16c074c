package refund

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculate_OutsideWindow(t *testing.T) {
	c := NewCalculator()

	_, ok := c.Calculate(now, Input{
		Price:          dec("100000"),
		OrderCreatedAt: now.Add(-25 * time.Hour),
	})
	assert.False(t, ok)

	// Exactly at the boundary still qualifies.
	expire := now.Add(29 * 24 * time.Hour)
	amount, ok := c.Calculate(now, Input{
		Price:          dec("100000"),
		OrderCreatedAt: now.Add(-24 * time.Hour),
		ExpireAt:       &expire,
		TotalDays:      30,
		QuotaGB:        dec("50"),
	})
	assert.True(t, ok)
	assert.True(t, amount.IsPositive())
}

func TestCalculate_OnHoldRefundsFull(t *testing.T) {
	c := NewCalculator()

	amount, ok := c.Calculate(now, Input{
		Price:          dec("80000"),
		OrderCreatedAt: now.Add(-12 * time.Hour),
		OnHold:         true,
		TotalDays:      30,
		QuotaGB:        dec("50"),
		UsedGB:         dec("50"), // irrelevant when never started
	})
	assert.True(t, ok)
	assert.True(t, amount.Equal(dec("80000")))
}

func TestCalculate_LesserRatioWins(t *testing.T) {
	c := NewCalculator()
	expire := now.Add(15 * 24 * time.Hour) // half the time left

	// Data nearly exhausted: data ratio (0.1) beats time ratio (0.5).
	amount, ok := c.Calculate(now, Input{
		Price:          dec("100000"),
		OrderCreatedAt: now.Add(-12 * time.Hour),
		ExpireAt:       &expire,
		TotalDays:      30,
		QuotaGB:        dec("50"),
		UsedGB:         dec("45"),
	})
	assert.True(t, ok)
	assert.True(t, amount.Equal(dec("10000")), "got %s", amount)

	// Barely any data used: time ratio is the binding one.
	amount, ok = c.Calculate(now, Input{
		Price:          dec("100000"),
		OrderCreatedAt: now.Add(-12 * time.Hour),
		ExpireAt:       &expire,
		TotalDays:      30,
		QuotaGB:        dec("50"),
		UsedGB:         dec("1"),
	})
	assert.True(t, ok)
	assert.True(t, amount.Equal(dec("50000")), "got %s", amount)
}

func TestCalculate_NoExpiryMeansFullTimeRatio(t *testing.T) {
	c := NewCalculator()

	amount, ok := c.Calculate(now, Input{
		Price:          dec("60000"),
		OrderCreatedAt: now.Add(-1 * time.Hour),
		TotalDays:      30,
		QuotaGB:        dec("10"),
		UsedGB:         dec("2.5"),
	})
	assert.True(t, ok)
	assert.True(t, amount.Equal(dec("45000")), "got %s", amount)
}

func TestCalculate_ExpiredResourceRefundsNothing(t *testing.T) {
	c := NewCalculator()
	expire := now.Add(-2 * time.Hour)

	amount, ok := c.Calculate(now, Input{
		Price:          dec("100000"),
		OrderCreatedAt: now.Add(-20 * time.Hour),
		ExpireAt:       &expire,
		TotalDays:      1,
		QuotaGB:        dec("50"),
	})
	assert.True(t, ok)
	assert.True(t, amount.IsZero())
}

// Long plans prorate against their own length. A 60-day plan with 45 days
// left refunds 75%, not the 150%-capped figure a fixed 30-day divisor
// would produce.
func TestCalculate_TotalDaysFromPlanSnapshot(t *testing.T) {
	c := NewCalculator()
	expire := now.Add(45 * 24 * time.Hour)

	amount, ok := c.Calculate(now, Input{
		Price:          dec("200000"),
		OrderCreatedAt: now.Add(-6 * time.Hour),
		ExpireAt:       &expire,
		TotalDays:      60,
		QuotaGB:        dec("100"),
	})
	assert.True(t, ok)
	assert.True(t, amount.Equal(dec("150000")), "got %s", amount)
}

func TestCalculate_OverusedDataClampsToZero(t *testing.T) {
	c := NewCalculator()
	expire := now.Add(20 * 24 * time.Hour)

	amount, ok := c.Calculate(now, Input{
		Price:          dec("100000"),
		OrderCreatedAt: now.Add(-3 * time.Hour),
		ExpireAt:       &expire,
		TotalDays:      30,
		QuotaGB:        dec("50"),
		UsedGB:         dec("55"),
	})
	assert.True(t, ok)
	assert.True(t, amount.IsZero())
}

func TestCalculate_RoundsToTwoDecimals(t *testing.T) {
	c := NewCalculator()
	expire := now.Add(10 * 24 * time.Hour)

	amount, ok := c.Calculate(now, Input{
		Price:          dec("100"),
		OrderCreatedAt: now.Add(-1 * time.Hour),
		ExpireAt:       &expire,
		TotalDays:      30,
		QuotaGB:        dec("3"),
		UsedGB:         dec("2"),
	})
	assert.True(t, ok)
	// min(10/30, 1/3) * 100 = 33.33...
	assert.True(t, amount.Equal(dec("33.33")), "got %s", amount)
}
