package sizing

import (
	"github.com/shopspring/decimal"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
)

// PnLPercent returns the percentage return of a closed position. Long
// positions gain when exit > entry, shorts gain when exit < entry.
// Leverage above 1 multiplies the return.
func PnLPercent(entry, exit decimal.Decimal, side models.TradeSide, leverage int) float64 {
	if entry.Sign() <= 0 {
		return 0
	}
	var move decimal.Decimal
	if side == models.SideShort {
		move = entry.Sub(exit)
	} else {
		move = exit.Sub(entry)
	}
	pct := move.Div(entry).Mul(hundred)
	if leverage > 1 {
		pct = pct.Mul(decimal.NewFromInt(int64(leverage)))
	}
	out, _ := pct.Float64()
	return out
}

// PnLAmount converts a position's percentage return into quote currency.
func PnLAmount(positionSize, entry, exit decimal.Decimal, side models.TradeSide, leverage int) decimal.Decimal {
	pct := PnLPercent(entry, exit, side, leverage)
	return positionSize.Mul(decimal.NewFromFloat(pct)).Div(hundred)
}

// MaxDrawdown scans an equity curve for the largest peak-to-trough decline
// and returns it as a negative percentage. An empty or monotonic curve
// yields 0.
func MaxDrawdown(curve []decimal.Decimal) float64 {
	if len(curve) < 2 {
		return 0
	}
	peak := curve[0]
	worst := decimal.Zero
	for _, point := range curve[1:] {
		if point.GreaterThan(peak) {
			peak = point
			continue
		}
		if peak.Sign() <= 0 {
			continue
		}
		dd := point.Sub(peak).Div(peak).Mul(hundred)
		if dd.LessThan(worst) {
			worst = dd
		}
	}
	out, _ := worst.Float64()
	return out
}

// TradeStats summarizes a list of closed attempts for follower-facing
// performance endpoints.
type TradeStats struct {
	Total     int             `json:"total"`
	Wins      int             `json:"wins"`
	Losses    int             `json:"losses"`
	WinRate   float64         `json:"win_rate"`
	AvgReturn float64         `json:"avg_return"`
	TotalPnL  decimal.Decimal `json:"total_pnl"`
}

// Aggregate computes win-rate and average return over closed attempts.
// Open or unsettled attempts are skipped.
func Aggregate(attempts []models.CopyAttempt) TradeStats {
	stats := TradeStats{TotalPnL: decimal.Zero}
	var returnSum float64
	for _, a := range attempts {
		if a.RealizedPnL == nil || a.PnLPct == nil {
			continue
		}
		stats.Total++
		stats.TotalPnL = stats.TotalPnL.Add(*a.RealizedPnL)
		returnSum += *a.PnLPct
		if a.RealizedPnL.Sign() > 0 {
			stats.Wins++
		} else if a.RealizedPnL.Sign() < 0 {
			stats.Losses++
		}
	}
	if stats.Total > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Total) * 100
		stats.AvgReturn = returnSum / float64(stats.Total)
	}
	return stats
}
