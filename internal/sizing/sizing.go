package sizing

import (
	"github.com/shopspring/decimal"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
)

var hundred = decimal.NewFromInt(100)

// CalculatedPosition is the derived sizing result for one follower. It is
// never persisted; the orchestrator copies the fields it needs onto the
// attempt record.
type CalculatedPosition struct {
	// PositionSize is the follower's size in quote currency, >= 0.
	PositionSize decimal.Decimal
	// Leverage is the resolved leverage after capping against the
	// subscription limit.
	Leverage int
	// AllocationBefore is the position's share of equity in percent,
	// capped at 100.
	AllocationBefore float64
	// AllocationAfter mirrors AllocationBefore until a post-execution
	// reconciliation pass recomputes it.
	AllocationAfter float64
}

// CalculatePosition sizes a follower's position from their subscription
// settings, the follower's equity, and the master's leverage. Pure; zero
// or negative equity yields a zero-size result that callers must treat as
// insufficient equity.
func CalculatePosition(sub models.FollowerSubscription, equity decimal.Decimal, masterLeverage int) CalculatedPosition {
	leverage := resolveLeverage(masterLeverage, sub.MaxLeverage)

	if equity.Sign() <= 0 {
		return CalculatedPosition{PositionSize: decimal.Zero, Leverage: leverage}
	}

	var base decimal.Decimal
	switch sub.AllocationMode {
	case models.AllocationFixed:
		base = decimal.Min(sub.AllocationValue, equity)
	default:
		// PERCENT. The validator clamps the percent to [0,100] at write
		// time, so the clamp here only guards rows written before that.
		pct := sub.AllocationValue
		if pct.Sign() < 0 {
			pct = decimal.Zero
		}
		if pct.GreaterThan(hundred) {
			pct = hundred
		}
		base = equity.Mul(pct).Div(hundred)
	}

	multiplier := sub.RiskMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	adjusted := base.Mul(decimal.NewFromFloat(multiplier))

	if adjusted.Sign() < 0 {
		adjusted = decimal.Zero
	}
	if adjusted.GreaterThan(equity) {
		adjusted = equity
	}

	allocation, _ := adjusted.Mul(hundred).Div(equity).Float64()
	if allocation > 100 {
		allocation = 100
	}

	return CalculatedPosition{
		PositionSize:     adjusted,
		Leverage:         leverage,
		AllocationBefore: allocation,
		AllocationAfter:  allocation,
	}
}

// resolveLeverage caps the master's leverage at the subscription limit.
// Spot trades arrive with leverage 0 and keep the subscription limit as an
// upper bound for futures sizing elsewhere.
func resolveLeverage(masterLeverage, maxLeverage int) int {
	if maxLeverage <= 0 {
		maxLeverage = 1
	}
	if masterLeverage <= 0 {
		return maxLeverage
	}
	if masterLeverage < maxLeverage {
		return masterLeverage
	}
	return maxLeverage
}
