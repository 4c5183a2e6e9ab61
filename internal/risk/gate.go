package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/config"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
)

// Decision is the gate's verdict for one prospective copy. Denial is an
// expected business outcome, not an error; callers persist it as a SKIPPED
// attempt with Reason.
type Decision struct {
	Allowed bool
	// Reason is set only when denied.
	Reason   string
	Warnings []string
	// ShouldPause signals a total-loss breach; the caller must pause the
	// subscription and notify the follower.
	ShouldPause bool
}

// Input carries everything one evaluation needs. The gate itself does no
// I/O; the orchestrator resolves all aggregates up front.
type Input struct {
	Subscription models.FollowerSubscription

	MasterUserID   string
	FollowerUserID string

	Equity        decimal.Decimal
	InitialEquity decimal.Decimal

	OpenTrades      int
	DailyLossAmount decimal.Decimal
	OpenNotional    decimal.Decimal
	NewPositionSize decimal.Decimal

	RequestedLeverage int
	// EventTimestamp is the master event's time; zero skips the recency check.
	EventTimestamp time.Time
}

type Gate struct {
	Config config.RiskConfig
	Logger *zap.Logger
}

// Evaluate runs the ordered checks; the first failure denies and stops.
// Warnings from the soft thresholds accumulate and are returned either way.
func (g *Gate) Evaluate(in Input) Decision {
	var warnings []string

	if reason := g.rejectSelfCopy(in); reason != "" {
		return g.deny(in, reason, warnings, false)
	}
	if reason := g.rejectStaleEvent(in); reason != "" {
		return g.deny(in, reason, warnings, false)
	}
	if reason := g.rejectInactive(in); reason != "" {
		return g.deny(in, reason, warnings, false)
	}
	if reason := g.rejectOpenTrades(in); reason != "" {
		return g.deny(in, reason, warnings, false)
	}
	if reason := g.rejectLeverage(in); reason != "" {
		return g.deny(in, reason, warnings, false)
	}
	if reason, warning := g.rejectDailyLoss(in); reason != "" {
		return g.deny(in, reason, warnings, false)
	} else if warning != "" {
		warnings = append(warnings, warning)
	}
	if reason, warning := g.rejectTotalLoss(in); reason != "" {
		return g.deny(in, reason, warnings, true)
	} else if warning != "" {
		warnings = append(warnings, warning)
	}
	if reason := g.rejectDustEquity(in); reason != "" {
		return g.deny(in, reason, warnings, false)
	}
	if reason, warning := g.rejectExposure(in); reason != "" {
		return g.deny(in, reason, warnings, false)
	} else if warning != "" {
		warnings = append(warnings, warning)
	}

	return Decision{Allowed: true, Warnings: warnings}
}

func (g *Gate) deny(in Input, reason string, warnings []string, shouldPause bool) Decision {
	if g != nil && g.Logger != nil {
		g.Logger.Debug("risk: deny",
			zap.String("follower", in.FollowerUserID),
			zap.Uint64("strategy_id", in.Subscription.StrategyID),
			zap.String("reason", reason),
		)
	}
	return Decision{Reason: reason, Warnings: warnings, ShouldPause: shouldPause}
}

func (g *Gate) rejectSelfCopy(in Input) string {
	if in.MasterUserID != "" && in.MasterUserID == in.FollowerUserID {
		return "Self-copy is not allowed"
	}
	return ""
}

func (g *Gate) rejectStaleEvent(in Input) string {
	if in.EventTimestamp.IsZero() {
		return ""
	}
	maxAge := 60 * time.Second
	if g != nil && g.Config.MaxEventAge > 0 {
		maxAge = g.Config.MaxEventAge
	}
	age := time.Since(in.EventTimestamp)
	if age > maxAge {
		return fmt.Sprintf("Master event too old: %s exceeds %s", age.Round(time.Second), maxAge)
	}
	return ""
}

func (g *Gate) rejectInactive(in Input) string {
	if in.Subscription.Status != models.SubscriptionActive {
		return fmt.Sprintf("Subscription is %s", in.Subscription.Status)
	}
	return ""
}

func (g *Gate) rejectOpenTrades(in Input) string {
	limit := in.Subscription.MaxOpenTrades
	if limit <= 0 {
		return ""
	}
	if in.OpenTrades >= limit {
		return fmt.Sprintf("Max open trades reached: %d/%d", in.OpenTrades, limit)
	}
	return ""
}

func (g *Gate) rejectLeverage(in Input) string {
	limit := in.Subscription.MaxLeverage
	if limit <= 0 || in.RequestedLeverage <= 0 {
		return ""
	}
	if in.RequestedLeverage > limit {
		return fmt.Sprintf("Leverage %dx exceeds the %dx limit", in.RequestedLeverage, limit)
	}
	return ""
}

func (g *Gate) rejectDailyLoss(in Input) (reason, warning string) {
	limit := in.Subscription.MaxDailyLossPct
	if limit <= 0 || in.Equity.Sign() <= 0 {
		return "", ""
	}
	lossPct, _ := in.DailyLossAmount.Mul(decimal.NewFromInt(100)).Div(in.Equity).Float64()
	if lossPct >= limit {
		return fmt.Sprintf("Daily loss limit reached: %.2f%% of equity lost today (limit %.2f%%)", lossPct, limit), ""
	}
	if lossPct >= limit*0.8 {
		return "", fmt.Sprintf("Approaching daily loss limit: %.2f%% of %.2f%%", lossPct, limit)
	}
	return "", ""
}

func (g *Gate) rejectTotalLoss(in Input) (reason, warning string) {
	limit := in.Subscription.MaxTotalLossPct
	if limit <= 0 || in.InitialEquity.Sign() <= 0 {
		return "", ""
	}
	lossPct, _ := in.InitialEquity.Sub(in.Equity).Mul(decimal.NewFromInt(100)).Div(in.InitialEquity).Float64()
	if lossPct >= limit {
		return fmt.Sprintf("Total loss limit reached: %.2f%% drawdown from initial equity (limit %.2f%%)", lossPct, limit), ""
	}
	if lossPct >= limit*0.8 {
		return "", fmt.Sprintf("Approaching total loss limit: %.2f%% of %.2f%%", lossPct, limit)
	}
	return "", ""
}

func (g *Gate) rejectDustEquity(in Input) string {
	floor := 10.0
	if g != nil && g.Config.MinEquityUSD > 0 {
		floor = g.Config.MinEquityUSD
	}
	if in.Equity.LessThan(decimal.NewFromFloat(floor)) {
		return fmt.Sprintf("Equity %s below the $%.2f minimum", in.Equity.StringFixed(2), floor)
	}
	return ""
}

func (g *Gate) rejectExposure(in Input) (reason, warning string) {
	maxPct := 80.0
	if g != nil && g.Config.MaxPortfolioExposurePct > 0 {
		maxPct = g.Config.MaxPortfolioExposurePct
	}
	if in.Equity.Sign() <= 0 {
		return "", ""
	}
	exposurePct, _ := in.OpenNotional.Add(in.NewPositionSize).
		Mul(decimal.NewFromInt(100)).Div(in.Equity).Float64()
	if exposurePct > maxPct {
		return fmt.Sprintf("Portfolio exposure %.2f%% exceeds the %.2f%% cap", exposurePct, maxPct), ""
	}
	if exposurePct >= maxPct*0.9 {
		return "", fmt.Sprintf("Portfolio exposure %.2f%% near the %.2f%% cap", exposurePct, maxPct)
	}
	return "", ""
}
