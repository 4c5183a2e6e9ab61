package replicator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/audit"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/cache"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/executor"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/sizing"
)

// closePositions mirrors a master close: every open attempt keyed by the
// master trade id gets an opposing order at the reported exit price, its
// realized PnL, and a closed-at stamp. Follower failures stay isolated.
func (e *Engine) closePositions(ctx context.Context, event models.MasterExecutionEvent) (Summary, error) {
	exitPrice := event.EntryPrice
	if event.ExitPrice != nil {
		exitPrice = *event.ExitPrice
	}
	if exitPrice.Sign() <= 0 {
		return Summary{}, errors.New("close event missing exit price")
	}
	closedAt := event.Timestamp
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	attempts, err := e.Repo.ListOpenAttemptsByMasterTrade(ctx, event.TradeID)
	if err != nil {
		return Summary{}, fmt.Errorf("load open attempts for trade %s: %w", event.TradeID, err)
	}

	if event.Action == models.ActionClose {
		if err := e.Repo.CloseMasterTrade(ctx, event.TradeID, exitPrice, closedAt); err != nil && e.Logger != nil {
			e.Logger.Error("close: persist master trade close",
				zap.String("trade_id", event.TradeID),
				zap.Error(err),
			)
		}
	}

	summary := Summary{Followers: len(attempts), Complete: true}
	for _, attempt := range attempts {
		if err := e.closeFollower(ctx, attempt, exitPrice, closedAt); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", attempt.FollowerUserID, err))
		} else {
			summary.Copied++
		}
	}

	if e.Logger != nil {
		e.Logger.Info("close: settled",
			zap.String("trade_id", event.TradeID),
			zap.Int("positions", summary.Followers),
			zap.Int("closed", summary.Copied),
			zap.Int("failed", summary.Failed),
		)
	}
	return summary, nil
}

func (e *Engine) closeFollower(ctx context.Context, attempt models.CopyAttempt, exitPrice decimal.Decimal, closedAt time.Time) error {
	credential, err := e.Repo.GetActiveCredential(ctx, attempt.FollowerUserID, attempt.Market)
	if err != nil {
		return fmt.Errorf("resolve credential: %w", err)
	}
	handle := ""
	if credential != nil {
		handle = credential.Handle
	}

	opposing := models.SideShort
	if attempt.Side == models.SideShort {
		opposing = models.SideLong
	}
	if _, err := e.Executor.ExecuteTrade(ctx, executor.Request{
		FollowerUserID:   attempt.FollowerUserID,
		Symbol:           attempt.Symbol,
		Side:             opposing,
		Market:           attempt.Market,
		PositionSize:     attempt.FollowerSize,
		Price:            exitPrice,
		Leverage:         attempt.Leverage,
		CredentialHandle: handle,
		ReduceOnly:       true,
	}); err != nil {
		e.emitCloseAudit(ctx, attempt, map[string]any{"error": err.Error()})
		return fmt.Errorf("close order: %w", err)
	}

	pnlPct := sizing.PnLPercent(attempt.EntryPrice, exitPrice, attempt.Side, attempt.Leverage)
	pnlAmount := sizing.PnLAmount(attempt.FollowerSize, attempt.EntryPrice, exitPrice, attempt.Side, attempt.Leverage)

	if err := e.Repo.CloseCopyAttempt(ctx, attempt.ID, exitPrice, pnlAmount, pnlPct, closedAt); err != nil {
		return fmt.Errorf("persist close: %w", err)
	}
	if e.Cache != nil {
		// Realized PnL changes equity; drop the stale value.
		e.Cache.Delete(cache.EquityKey(attempt.FollowerUserID))
	}

	e.emitCloseAudit(ctx, attempt, map[string]any{
		"exit_price":   exitPrice.String(),
		"realized_pnl": pnlAmount.String(),
		"pnl_pct":      pnlPct,
	})
	e.notify(ctx, attempt.FollowerUserID, audit.NotifyPositionClosed, map[string]any{
		"symbol":       attempt.Symbol,
		"realized_pnl": pnlAmount.String(),
		"pnl_pct":      pnlPct,
	})
	return nil
}

func (e *Engine) emitCloseAudit(ctx context.Context, attempt models.CopyAttempt, metadata map[string]any) {
	if e.Audit == nil {
		return
	}
	meta := map[string]any{
		"trade_id":    attempt.MasterEventID,
		"strategy_id": attempt.StrategyID,
		"follower":    attempt.FollowerUserID,
		"symbol":      attempt.Symbol,
	}
	for k, v := range metadata {
		meta[k] = v
	}
	e.Audit.Record(ctx, "position_closed", "copy_attempt", meta)
}
