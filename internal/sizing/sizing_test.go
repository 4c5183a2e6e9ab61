package sizing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func percentSub(pct string) models.FollowerSubscription {
	return models.FollowerSubscription{
		AllocationMode:  models.AllocationPercent,
		AllocationValue: dec(pct),
		MaxLeverage:     1,
		RiskMultiplier:  1,
	}
}

func TestPercentModeWithinEquity(t *testing.T) {
	equity := dec("1000")
	for _, pct := range []string{"0", "10", "50", "100"} {
		got := CalculatePosition(percentSub(pct), equity, 0)
		if got.PositionSize.Sign() < 0 {
			t.Fatalf("pct=%s: negative size %s", pct, got.PositionSize)
		}
		if got.PositionSize.GreaterThan(equity) {
			t.Fatalf("pct=%s: size %s exceeds equity", pct, got.PositionSize)
		}
	}

	got := CalculatePosition(percentSub("10"), equity, 0)
	if !got.PositionSize.Equal(dec("100")) {
		t.Fatalf("expected 100, got %s", got.PositionSize)
	}
	if got.AllocationBefore != 10 {
		t.Fatalf("expected allocation 10%%, got %v", got.AllocationBefore)
	}
	if got.AllocationAfter != got.AllocationBefore {
		t.Fatalf("allocation after should mirror before")
	}
}

func TestPercentModeClampsOutOfRange(t *testing.T) {
	equity := dec("1000")
	if got := CalculatePosition(percentSub("150"), equity, 0); !got.PositionSize.Equal(equity) {
		t.Fatalf("expected clamp to equity, got %s", got.PositionSize)
	}
	if got := CalculatePosition(percentSub("-5"), equity, 0); got.PositionSize.Sign() != 0 {
		t.Fatalf("expected zero size for negative percent, got %s", got.PositionSize)
	}
}

func TestFixedModeCapsAtEquity(t *testing.T) {
	sub := models.FollowerSubscription{
		AllocationMode:  models.AllocationFixed,
		AllocationValue: dec("250"),
		MaxLeverage:     1,
		RiskMultiplier:  1,
	}
	if got := CalculatePosition(sub, dec("1000"), 0); !got.PositionSize.Equal(dec("250")) {
		t.Fatalf("expected 250, got %s", got.PositionSize)
	}
	if got := CalculatePosition(sub, dec("100"), 0); !got.PositionSize.Equal(dec("100")) {
		t.Fatalf("expected min(value, equity)=100, got %s", got.PositionSize)
	}
}

func TestRiskMultiplierScales(t *testing.T) {
	base := percentSub("10")
	doubled := base
	doubled.RiskMultiplier = 2

	equity := dec("1000")
	one := CalculatePosition(base, equity, 0)
	two := CalculatePosition(doubled, equity, 0)
	if !two.PositionSize.GreaterThan(one.PositionSize) {
		t.Fatalf("doubling the multiplier should increase the size: %s vs %s", one.PositionSize, two.PositionSize)
	}
	if !two.PositionSize.Equal(dec("200")) {
		t.Fatalf("expected 200, got %s", two.PositionSize)
	}
}

func TestZeroEquityYieldsZeroSize(t *testing.T) {
	got := CalculatePosition(percentSub("50"), decimal.Zero, 0)
	if got.PositionSize.Sign() != 0 {
		t.Fatalf("expected zero size for zero equity, got %s", got.PositionSize)
	}
	got = CalculatePosition(percentSub("50"), dec("-10"), 0)
	if got.PositionSize.Sign() != 0 {
		t.Fatalf("expected zero size for negative equity, got %s", got.PositionSize)
	}
}

func TestLeverageResolution(t *testing.T) {
	sub := percentSub("10")
	sub.MaxLeverage = 3

	if got := CalculatePosition(sub, dec("1000"), 5); got.Leverage != 3 {
		t.Fatalf("master 5x, cap 3x: expected 3, got %d", got.Leverage)
	}
	if got := CalculatePosition(sub, dec("1000"), 2); got.Leverage != 2 {
		t.Fatalf("master 2x, cap 3x: expected 2, got %d", got.Leverage)
	}
	if got := CalculatePosition(sub, dec("1000"), 0); got.Leverage != 3 {
		t.Fatalf("spot event: expected subscription cap 3, got %d", got.Leverage)
	}
}

func TestPnLPercent(t *testing.T) {
	if got := PnLPercent(dec("100"), dec("110"), models.SideLong, 1); got != 10 {
		t.Fatalf("long 100->110 should be +10%%, got %v", got)
	}
	if got := PnLPercent(dec("100"), dec("110"), models.SideShort, 1); got != -10 {
		t.Fatalf("short 100->110 should be -10%%, got %v", got)
	}
	if got := PnLPercent(dec("100"), dec("110"), models.SideLong, 5); got != 50 {
		t.Fatalf("5x long 100->110 should be +50%%, got %v", got)
	}
	if got := PnLPercent(decimal.Zero, dec("110"), models.SideLong, 1); got != 0 {
		t.Fatalf("zero entry should yield 0, got %v", got)
	}
}

func TestPnLAmount(t *testing.T) {
	got := PnLAmount(dec("200"), dec("100"), dec("110"), models.SideLong, 1)
	if !got.Equal(dec("20")) {
		t.Fatalf("expected 20, got %s", got)
	}
	got = PnLAmount(dec("200"), dec("100"), dec("90"), models.SideLong, 1)
	if !got.Equal(dec("-20")) {
		t.Fatalf("expected -20, got %s", got)
	}
}

func TestMaxDrawdown(t *testing.T) {
	curve := []decimal.Decimal{dec("1000"), dec("1200"), dec("900"), dec("1100"), dec("1050")}
	got := MaxDrawdown(curve)
	if got != -25 {
		t.Fatalf("expected -25%% drawdown (1200 -> 900), got %v", got)
	}

	if got := MaxDrawdown([]decimal.Decimal{dec("100")}); got != 0 {
		t.Fatalf("single point curve should yield 0, got %v", got)
	}
	if got := MaxDrawdown([]decimal.Decimal{dec("100"), dec("200"), dec("300")}); got != 0 {
		t.Fatalf("monotonic curve should yield 0, got %v", got)
	}
}

func TestAggregate(t *testing.T) {
	win := dec("30")
	loss := dec("-10")
	winPct := 15.0
	lossPct := -5.0
	attempts := []models.CopyAttempt{
		{RealizedPnL: &win, PnLPct: &winPct},
		{RealizedPnL: &loss, PnLPct: &lossPct},
		{Status: models.AttemptExecuted}, // still open, skipped
	}
	stats := Aggregate(attempts)
	if stats.Total != 2 || stats.Wins != 1 || stats.Losses != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.WinRate != 50 {
		t.Fatalf("expected 50%% win rate, got %v", stats.WinRate)
	}
	if stats.AvgReturn != 5 {
		t.Fatalf("expected avg return 5, got %v", stats.AvgReturn)
	}
	if !stats.TotalPnL.Equal(dec("20")) {
		t.Fatalf("expected total pnl 20, got %s", stats.TotalPnL)
	}
}
