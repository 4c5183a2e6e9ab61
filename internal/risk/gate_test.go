package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/config"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func baseInput() Input {
	return Input{
		Subscription: models.FollowerSubscription{
			StrategyID:      1,
			FollowerUserID:  "follower-1",
			Status:          models.SubscriptionActive,
			MaxOpenTrades:   5,
			MaxLeverage:     3,
			MaxDailyLossPct: 5,
			MaxTotalLossPct: 20,
		},
		MasterUserID:    "master-1",
		FollowerUserID:  "follower-1",
		Equity:          dec("1000"),
		InitialEquity:   dec("1000"),
		NewPositionSize: dec("100"),
		EventTimestamp:  time.Now(),
	}
}

func newGate() *Gate {
	return &Gate{Config: config.RiskConfig{
		MaxEventAge:             60 * time.Second,
		MinEquityUSD:            10,
		MaxPortfolioExposurePct: 80,
	}}
}

func TestAllowsCleanInput(t *testing.T) {
	d := newGate().Evaluate(baseInput())
	if !d.Allowed {
		t.Fatalf("expected allow, denied with %q", d.Reason)
	}
	if d.ShouldPause {
		t.Fatalf("clean input must not pause")
	}
	if len(d.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", d.Warnings)
	}
}

func TestDeniesSelfCopy(t *testing.T) {
	in := baseInput()
	in.MasterUserID = in.FollowerUserID
	d := newGate().Evaluate(in)
	if d.Allowed {
		t.Fatalf("self-copy must be denied")
	}
	if !strings.Contains(d.Reason, "Self-copy") {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestDeniesStaleEvent(t *testing.T) {
	in := baseInput()
	in.EventTimestamp = time.Now().Add(-2 * time.Minute)
	d := newGate().Evaluate(in)
	if d.Allowed {
		t.Fatalf("stale event must be denied")
	}
	if !strings.Contains(d.Reason, "too old") {
		t.Fatalf("unexpected reason %q", d.Reason)
	}

	// A zero timestamp skips the check.
	in.EventTimestamp = time.Time{}
	if d := newGate().Evaluate(in); !d.Allowed {
		t.Fatalf("zero timestamp should skip recency: %q", d.Reason)
	}
}

func TestDeniesInactiveSubscription(t *testing.T) {
	for _, status := range []models.SubscriptionStatus{models.SubscriptionPaused, models.SubscriptionStopped} {
		in := baseInput()
		in.Subscription.Status = status
		d := newGate().Evaluate(in)
		if d.Allowed {
			t.Fatalf("status %s must be denied", status)
		}
		if !strings.Contains(d.Reason, string(status)) {
			t.Fatalf("reason %q should name the status", d.Reason)
		}
	}
}

func TestDeniesMaxOpenTrades(t *testing.T) {
	in := baseInput()
	in.OpenTrades = 5
	d := newGate().Evaluate(in)
	if d.Allowed {
		t.Fatalf("at the open-trade limit must be denied")
	}
	if !strings.Contains(d.Reason, "Max open trades") {
		t.Fatalf("unexpected reason %q", d.Reason)
	}

	in.OpenTrades = 4
	if d := newGate().Evaluate(in); !d.Allowed {
		t.Fatalf("below the limit should be allowed: %q", d.Reason)
	}
}

func TestDeniesLeverage(t *testing.T) {
	in := baseInput()
	in.RequestedLeverage = 5
	d := newGate().Evaluate(in)
	if d.Allowed {
		t.Fatalf("5x against a 3x limit must be denied")
	}
	if !strings.Contains(d.Reason, "Leverage") {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestDailyLossLimit(t *testing.T) {
	in := baseInput()
	in.DailyLossAmount = dec("60") // 6% of 1000 vs 5% limit
	d := newGate().Evaluate(in)
	if d.Allowed {
		t.Fatalf("6%% daily loss vs 5%% limit must be denied")
	}
	if !strings.Contains(d.Reason, "Daily loss limit") {
		t.Fatalf("unexpected reason %q", d.Reason)
	}

	in.DailyLossAmount = dec("10") // 1%
	if d := newGate().Evaluate(in); !d.Allowed {
		t.Fatalf("1%% daily loss should be allowed: %q", d.Reason)
	}

	in.DailyLossAmount = dec("45") // 4.5% = 90% of the limit
	d = newGate().Evaluate(in)
	if !d.Allowed {
		t.Fatalf("4.5%% should be allowed: %q", d.Reason)
	}
	if len(d.Warnings) != 1 || !strings.Contains(d.Warnings[0], "daily loss") {
		t.Fatalf("expected a daily-loss warning, got %v", d.Warnings)
	}
}

func TestTotalLossLimitPauses(t *testing.T) {
	in := baseInput()
	in.Equity = dec("800") // 20% drawdown vs 20% limit
	d := newGate().Evaluate(in)
	if d.Allowed {
		t.Fatalf("20%% drawdown vs 20%% limit must be denied")
	}
	if !strings.Contains(d.Reason, "Total loss limit") {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
	if !d.ShouldPause {
		t.Fatalf("total-loss breach must signal pause")
	}

	in.Equity = dec("830") // 17% = 85% of the limit
	d = newGate().Evaluate(in)
	if !d.Allowed {
		t.Fatalf("17%% drawdown should be allowed: %q", d.Reason)
	}
	if len(d.Warnings) != 1 || !strings.Contains(d.Warnings[0], "total loss") {
		t.Fatalf("expected a total-loss warning, got %v", d.Warnings)
	}
}

func TestFirstTradeBaselineIsNoOp(t *testing.T) {
	// Initial equity falling back to current equity makes the drawdown 0.
	in := baseInput()
	in.Equity = dec("500")
	in.InitialEquity = dec("500")
	if d := newGate().Evaluate(in); !d.Allowed {
		t.Fatalf("equal initial and current equity should pass: %q", d.Reason)
	}
}

func TestDeniesDustEquity(t *testing.T) {
	in := baseInput()
	in.Equity = dec("5")
	in.InitialEquity = dec("5")
	in.NewPositionSize = dec("1")
	d := newGate().Evaluate(in)
	if d.Allowed {
		t.Fatalf("$5 equity must be denied")
	}
	if !strings.Contains(d.Reason, "minimum") {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestExposureCap(t *testing.T) {
	in := baseInput()
	in.OpenNotional = dec("750")
	in.NewPositionSize = dec("100") // 85% vs 80% cap
	d := newGate().Evaluate(in)
	if d.Allowed {
		t.Fatalf("85%% exposure vs 80%% cap must be denied")
	}
	if !strings.Contains(d.Reason, "exposure") {
		t.Fatalf("unexpected reason %q", d.Reason)
	}

	in.OpenNotional = dec("650") // 75% total, above the 72% warning line
	d = newGate().Evaluate(in)
	if !d.Allowed {
		t.Fatalf("75%% exposure should be allowed: %q", d.Reason)
	}
	if len(d.Warnings) != 1 || !strings.Contains(d.Warnings[0], "exposure") {
		t.Fatalf("expected an exposure warning, got %v", d.Warnings)
	}
}

func TestDenialShortCircuits(t *testing.T) {
	// Self-copy is checked first; later violations never contribute warnings.
	in := baseInput()
	in.MasterUserID = in.FollowerUserID
	in.OpenTrades = 99
	in.RequestedLeverage = 50
	d := newGate().Evaluate(in)
	if d.Allowed || !strings.Contains(d.Reason, "Self-copy") {
		t.Fatalf("expected self-copy denial, got %+v", d)
	}
	if len(d.Warnings) != 0 {
		t.Fatalf("short-circuit denial should carry no warnings: %v", d.Warnings)
	}
}
