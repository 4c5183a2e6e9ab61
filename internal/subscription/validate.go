package subscription

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
)

var ErrInvalidConfig = errors.New("invalid subscription config")

const (
	maxOpenTradesCeiling = 50
	maxLeverageCeiling   = 125
	maxRiskMultiplier    = 10.0
)

var hundred = decimal.NewFromInt(100)

// Sanitize validates and clamps a subscription before it is persisted.
// Hard violations return an error wrapping ErrInvalidConfig; soft
// out-of-range values are clamped in place. Invalid rows must never reach
// the sizing calculator or the risk gate.
func Sanitize(sub *models.FollowerSubscription) error {
	if sub == nil {
		return fmt.Errorf("%w: nil subscription", ErrInvalidConfig)
	}
	sub.FollowerUserID = strings.TrimSpace(sub.FollowerUserID)
	if sub.FollowerUserID == "" {
		return fmt.Errorf("%w: follower user id is required", ErrInvalidConfig)
	}
	if sub.StrategyID == 0 {
		return fmt.Errorf("%w: strategy id is required", ErrInvalidConfig)
	}

	switch sub.AllocationMode {
	case models.AllocationPercent:
		if sub.AllocationValue.Sign() < 0 {
			sub.AllocationValue = decimal.Zero
		}
		if sub.AllocationValue.GreaterThan(hundred) {
			sub.AllocationValue = hundred
		}
	case models.AllocationFixed:
		if sub.AllocationValue.Sign() <= 0 {
			return fmt.Errorf("%w: fixed allocation must be positive", ErrInvalidConfig)
		}
	case "":
		sub.AllocationMode = models.AllocationPercent
		if sub.AllocationValue.Sign() < 0 {
			sub.AllocationValue = decimal.Zero
		}
		if sub.AllocationValue.GreaterThan(hundred) {
			sub.AllocationValue = hundred
		}
	default:
		return fmt.Errorf("%w: unknown allocation mode %q", ErrInvalidConfig, sub.AllocationMode)
	}

	if sub.MaxDailyLossPct < 0 {
		sub.MaxDailyLossPct = 0
	}
	if sub.MaxDailyLossPct > 100 {
		sub.MaxDailyLossPct = 100
	}
	if sub.MaxTotalLossPct < 0 {
		sub.MaxTotalLossPct = 0
	}
	if sub.MaxTotalLossPct > 100 {
		sub.MaxTotalLossPct = 100
	}

	if sub.MaxOpenTrades <= 0 {
		sub.MaxOpenTrades = 5
	}
	if sub.MaxOpenTrades > maxOpenTradesCeiling {
		sub.MaxOpenTrades = maxOpenTradesCeiling
	}

	if sub.MaxLeverage <= 0 {
		sub.MaxLeverage = 1
	}
	if sub.MaxLeverage > maxLeverageCeiling {
		sub.MaxLeverage = maxLeverageCeiling
	}

	if sub.RiskMultiplier <= 0 {
		sub.RiskMultiplier = 1
	}
	if sub.RiskMultiplier > maxRiskMultiplier {
		sub.RiskMultiplier = maxRiskMultiplier
	}

	if sub.Status == "" {
		sub.Status = models.SubscriptionActive
	}
	switch sub.Status {
	case models.SubscriptionActive, models.SubscriptionPaused, models.SubscriptionStopped:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidConfig, sub.Status)
	}

	return nil
}
