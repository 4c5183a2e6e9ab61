package replicator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/audit"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/cache"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/config"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/executor"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/repository"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/risk"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/scheduler"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/sizing"
)

// Summary is the outcome of one master event's fan-out.
type Summary struct {
	Followers int      `json:"followers"`
	Copied    int      `json:"copied"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
	// Complete is false when the drain timed out and work is still
	// settling in the background.
	Complete bool `json:"complete"`
}

// Engine replicates one master execution to every active follower of the
// strategy. It depends only on interfaces; per-follower failures never
// cross follower boundaries.
type Engine struct {
	Repo      repository.Repository
	Executor  executor.Executor
	Gate      *risk.Gate
	Cache     *cache.Cache
	Scheduler *scheduler.Scheduler
	Audit     audit.Logger
	Notifier  audit.Notifier
	Logger    *zap.Logger

	CacheTTL config.CacheConfig
}

// HandleMasterExecution is the single entry point for master events. Open
// events fan out to followers through the batch scheduler; close events run
// the close flow against the open attempt records.
func (e *Engine) HandleMasterExecution(ctx context.Context, event models.MasterExecutionEvent) (Summary, error) {
	if e == nil || e.Repo == nil {
		return Summary{}, errors.New("replication engine not configured")
	}
	if event.TradeID == "" {
		return Summary{}, errors.New("master event missing trade id")
	}

	switch event.Action {
	case models.ActionClose, models.ActionPartialClose:
		return e.closePositions(ctx, event)
	default:
		return e.replicate(ctx, event)
	}
}

// replicate loads the follower set and executes the per-follower open flow
// for each. A failure to load the follower list is the only error that
// fails the whole call.
func (e *Engine) replicate(ctx context.Context, event models.MasterExecutionEvent) (Summary, error) {
	followers, err := e.activeFollowers(ctx, event.StrategyID)
	if err != nil {
		return Summary{}, fmt.Errorf("load followers for strategy %d: %w", event.StrategyID, err)
	}
	summary := Summary{Followers: len(followers), Complete: true}
	if len(followers) == 0 {
		if e.Logger != nil {
			e.Logger.Info("replicate: no active followers",
				zap.Uint64("strategy_id", event.StrategyID),
				zap.String("trade_id", event.TradeID),
			)
		}
		return summary, nil
	}

	e.recordMasterTrade(ctx, event)

	if e.Scheduler != nil {
		items := make([]scheduler.Item, 0, len(followers))
		for _, sub := range followers {
			items = append(items, scheduler.Item{
				Key:      sub.FollowerUserID,
				Priority: priorityFor(sub),
				Run: func(ctx context.Context) error {
					return e.CopyToFollower(ctx, event, sub)
				},
			})
		}
		e.Scheduler.Enqueue(items...)
		results, complete := e.Scheduler.RunToCompletion(ctx)
		summary.Complete = complete
		for _, r := range results {
			if r.Err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", r.Key, r.Err))
			} else {
				summary.Copied++
			}
		}
	} else {
		for _, sub := range followers {
			if err := e.CopyToFollower(ctx, event, sub); err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", sub.FollowerUserID, err))
			} else {
				summary.Copied++
			}
		}
	}

	if e.Logger != nil {
		e.Logger.Info("replicate: fan-out settled",
			zap.Uint64("strategy_id", event.StrategyID),
			zap.String("trade_id", event.TradeID),
			zap.Int("followers", summary.Followers),
			zap.Int("copied", summary.Copied),
			zap.Int("failed", summary.Failed),
			zap.Bool("complete", summary.Complete),
		)
	}
	return summary, nil
}

// priorityFor ranks larger allocations first so the most capital-sensitive
// followers fill earliest in the drain.
func priorityFor(sub models.FollowerSubscription) int {
	v, _ := sub.AllocationValue.Float64()
	return int(v)
}

// CopyToFollower runs the full open flow for one (event, follower) pair:
// resolve state, size, gate, execute, record. The attempt row reaches
// exactly one terminal state; every early exit writes its own record.
func (e *Engine) CopyToFollower(ctx context.Context, event models.MasterExecutionEvent, sub models.FollowerSubscription) error {
	existing, err := e.Repo.GetCopyAttempt(ctx, event.TradeID, sub.FollowerUserID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if existing != nil {
		if e.Logger != nil {
			e.Logger.Debug("copy: already attempted",
				zap.String("trade_id", event.TradeID),
				zap.String("follower", sub.FollowerUserID),
				zap.String("status", string(existing.Status)),
			)
		}
		return nil
	}

	equity, err := e.followerEquity(ctx, sub.FollowerUserID)
	if err != nil {
		return fmt.Errorf("resolve equity: %w", err)
	}
	if equity.Sign() <= 0 {
		e.recordSkip(ctx, event, sub, sizing.CalculatedPosition{}, "Insufficient equity")
		return errors.New("insufficient equity")
	}

	initialEquity, err := e.initialEquity(ctx, sub, equity)
	if err != nil {
		return fmt.Errorf("resolve initial equity: %w", err)
	}

	openTrades, err := e.Repo.CountOpenAttempts(ctx, sub.FollowerUserID, sub.StrategyID)
	if err != nil {
		return fmt.Errorf("count open trades: %w", err)
	}
	dailyLoss, err := e.Repo.SumDailyRealizedLoss(ctx, sub.FollowerUserID, startOfDayUTC(time.Now()))
	if err != nil {
		return fmt.Errorf("sum daily loss: %w", err)
	}
	openNotional, err := e.Repo.SumOpenNotional(ctx, sub.FollowerUserID, sub.StrategyID)
	if err != nil {
		return fmt.Errorf("sum open notional: %w", err)
	}

	position := sizing.CalculatePosition(sub, equity, event.Leverage)
	if position.PositionSize.Sign() <= 0 {
		e.recordSkip(ctx, event, sub, position, "Insufficient equity")
		return errors.New("insufficient equity")
	}

	decision := e.Gate.Evaluate(risk.Input{
		Subscription:      sub,
		MasterUserID:      event.MasterUserID,
		FollowerUserID:    sub.FollowerUserID,
		Equity:            equity,
		InitialEquity:     initialEquity,
		OpenTrades:        openTrades,
		DailyLossAmount:   dailyLoss,
		OpenNotional:      openNotional,
		NewPositionSize:   position.PositionSize,
		RequestedLeverage: position.Leverage,
		EventTimestamp:    event.Timestamp,
	})
	if !decision.Allowed {
		e.recordSkip(ctx, event, sub, position, decision.Reason)
		if decision.ShouldPause {
			e.pauseForLossBreach(ctx, sub, decision.Reason)
		}
		return fmt.Errorf("risk denied: %s", decision.Reason)
	}
	if len(decision.Warnings) > 0 && e.Logger != nil {
		e.Logger.Warn("copy: risk warnings",
			zap.String("follower", sub.FollowerUserID),
			zap.Strings("warnings", decision.Warnings),
		)
	}

	attempt := e.newAttempt(event, sub, position)
	if len(decision.Warnings) > 0 {
		raw, _ := json.Marshal(decision.Warnings)
		attempt.Warnings = raw
	}

	credential, err := e.Repo.GetActiveCredential(ctx, sub.FollowerUserID, event.Market)
	if err != nil {
		return fmt.Errorf("resolve credential: %w", err)
	}
	if credential == nil {
		e.recordFailure(ctx, event, sub, position, "no active credential for "+string(event.Market))
		return errors.New("no active credential")
	}

	if err := e.Repo.InsertCopyAttempt(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrDuplicateAttempt) {
			// A concurrent delivery won the insert; this copy is done.
			return nil
		}
		return fmt.Errorf("insert attempt: %w", err)
	}

	result, execErr := e.Executor.ExecuteTrade(ctx, executor.Request{
		FollowerUserID:   sub.FollowerUserID,
		Symbol:           event.Symbol,
		Side:             event.Side,
		Market:           event.Market,
		PositionSize:     position.PositionSize,
		Price:            event.EntryPrice,
		StopLoss:         event.StopLoss,
		TakeProfit:       event.TakeProfit,
		Leverage:         position.Leverage,
		CredentialHandle: credential.Handle,
	})
	if execErr != nil {
		if err := e.Repo.UpdateCopyAttemptStatus(ctx, attempt.ID, models.AttemptFailed, map[string]any{
			"failure_reason": execErr.Error(),
		}); err != nil && e.Logger != nil {
			e.Logger.Error("copy: persist failure status", zap.Uint64("attempt_id", attempt.ID), zap.Error(err))
		}
		e.emitAudit(ctx, "copy_failed", event, sub, map[string]any{"error": execErr.Error()})
		e.notify(ctx, sub.FollowerUserID, audit.NotifyCopyFailed, map[string]any{
			"symbol": event.Symbol,
			"error":  execErr.Error(),
		})
		return fmt.Errorf("execute trade: %w", execErr)
	}

	openedAt := event.Timestamp
	if openedAt.IsZero() {
		openedAt = time.Now().UTC()
	}
	if err := e.Repo.UpdateCopyAttemptStatus(ctx, attempt.ID, models.AttemptExecuted, map[string]any{
		"exchange_trade_id": result.TradeID,
		"opened_at":         openedAt,
	}); err != nil && e.Logger != nil {
		e.Logger.Error("copy: persist executed status", zap.Uint64("attempt_id", attempt.ID), zap.Error(err))
	}

	e.emitAudit(ctx, "copy_executed", event, sub, map[string]any{
		"exchange_trade_id": result.TradeID,
		"size":              position.PositionSize.String(),
		"leverage":          position.Leverage,
	})
	e.notify(ctx, sub.FollowerUserID, audit.NotifyCopyExecuted, map[string]any{
		"symbol":   event.Symbol,
		"side":     string(event.Side),
		"size":     position.PositionSize.String(),
		"leverage": position.Leverage,
	})
	return nil
}

func (e *Engine) newAttempt(event models.MasterExecutionEvent, sub models.FollowerSubscription, position sizing.CalculatedPosition) *models.CopyAttempt {
	return &models.CopyAttempt{
		MasterEventID:    event.TradeID,
		FollowerUserID:   sub.FollowerUserID,
		StrategyID:       sub.StrategyID,
		MasterUserID:     event.MasterUserID,
		Symbol:           event.Symbol,
		Market:           event.Market,
		Side:             event.Side,
		Leverage:         position.Leverage,
		MasterSize:       event.PositionSize,
		FollowerSize:     position.PositionSize,
		AllocationBefore: position.AllocationBefore,
		AllocationAfter:  position.AllocationAfter,
		Status:           models.AttemptPending,
		EntryPrice:       event.EntryPrice,
	}
}

func (e *Engine) recordSkip(ctx context.Context, event models.MasterExecutionEvent, sub models.FollowerSubscription, position sizing.CalculatedPosition, reason string) {
	attempt := e.newAttempt(event, sub, position)
	attempt.Status = models.AttemptSkipped
	attempt.FailureReason = reason
	if err := e.Repo.InsertCopyAttempt(ctx, attempt); err != nil && !errors.Is(err, repository.ErrDuplicateAttempt) {
		if e.Logger != nil {
			e.Logger.Error("copy: persist skip record",
				zap.String("trade_id", event.TradeID),
				zap.String("follower", sub.FollowerUserID),
				zap.Error(err),
			)
		}
	}
	e.emitAudit(ctx, "copy_skipped", event, sub, map[string]any{"reason": reason})
}

func (e *Engine) recordFailure(ctx context.Context, event models.MasterExecutionEvent, sub models.FollowerSubscription, position sizing.CalculatedPosition, reason string) {
	attempt := e.newAttempt(event, sub, position)
	attempt.Status = models.AttemptFailed
	attempt.FailureReason = reason
	if err := e.Repo.InsertCopyAttempt(ctx, attempt); err != nil && !errors.Is(err, repository.ErrDuplicateAttempt) {
		if e.Logger != nil {
			e.Logger.Error("copy: persist failure record",
				zap.String("trade_id", event.TradeID),
				zap.String("follower", sub.FollowerUserID),
				zap.Error(err),
			)
		}
	}
	e.emitAudit(ctx, "copy_failed", event, sub, map[string]any{"reason": reason})
}

// pauseForLossBreach pauses the subscription after a total-loss denial and
// tells the follower why; copying stays blocked until they resume manually.
func (e *Engine) pauseForLossBreach(ctx context.Context, sub models.FollowerSubscription, reason string) {
	if err := e.Repo.UpdateSubscriptionStatus(ctx, sub.ID, models.SubscriptionPaused, reason); err != nil {
		if e.Logger != nil {
			e.Logger.Error("copy: auto-pause failed",
				zap.Uint64("subscription_id", sub.ID),
				zap.Error(err),
			)
		}
		return
	}
	if e.Cache != nil {
		e.Cache.Delete(cache.FollowersKey(sub.StrategyID))
	}
	if e.Logger != nil {
		e.Logger.Warn("copy: subscription auto-paused",
			zap.Uint64("subscription_id", sub.ID),
			zap.String("follower", sub.FollowerUserID),
			zap.String("reason", reason),
		)
	}
	e.notify(ctx, sub.FollowerUserID, audit.NotifyLossLimitPause, map[string]any{
		"strategy_id": sub.StrategyID,
		"reason":      reason,
	})
}

func (e *Engine) recordMasterTrade(ctx context.Context, event models.MasterExecutionEvent) {
	openedAt := event.Timestamp
	if openedAt.IsZero() {
		openedAt = time.Now().UTC()
	}
	trade := &models.MasterTrade{
		TradeID:      event.TradeID,
		StrategyID:   event.StrategyID,
		MasterUserID: event.MasterUserID,
		Symbol:       event.Symbol,
		Market:       event.Market,
		Side:         event.Side,
		Leverage:     event.Leverage,
		Size:         event.PositionSize,
		EntryPrice:   event.EntryPrice,
		OpenedAt:     openedAt,
	}
	if err := e.Repo.UpsertMasterTrade(ctx, trade); err != nil && e.Logger != nil {
		e.Logger.Error("replicate: persist master trade",
			zap.String("trade_id", event.TradeID),
			zap.Error(err),
		)
	}
}

// activeFollowers reads the strategy's follower list through the cache.
func (e *Engine) activeFollowers(ctx context.Context, strategyID uint64) ([]models.FollowerSubscription, error) {
	key := cache.FollowersKey(strategyID)
	if e.Cache != nil {
		if cached, ok := e.Cache.Get(key); ok {
			if subs, ok := cached.([]models.FollowerSubscription); ok {
				return subs, nil
			}
		}
	}
	subs, err := e.Repo.ListActiveSubscriptionsByStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if e.Cache != nil {
		ttl := e.CacheTTL.FollowerTTL
		if ttl <= 0 {
			ttl = 2 * time.Minute
		}
		e.Cache.SetTTL(key, subs, ttl)
	}
	return subs, nil
}

func (e *Engine) followerEquity(ctx context.Context, followerUserID string) (decimal.Decimal, error) {
	key := cache.EquityKey(followerUserID)
	if e.Cache != nil {
		if cached, ok := e.Cache.Get(key); ok {
			if equity, ok := cached.(decimal.Decimal); ok {
				return equity, nil
			}
		}
	}
	equity, err := e.Repo.GetFollowerEquity(ctx, followerUserID)
	if err != nil {
		return decimal.Zero, err
	}
	if e.Cache != nil {
		ttl := e.CacheTTL.EquityTTL
		if ttl <= 0 {
			ttl = time.Minute
		}
		e.Cache.SetTTL(key, equity, ttl)
	}
	return equity, nil
}

// initialEquity resolves the total-loss baseline: the snapshot taken before
// the pair's first copy, falling back to current equity when none exists.
// The fallback makes the total-loss check a no-op on the very first trade.
func (e *Engine) initialEquity(ctx context.Context, sub models.FollowerSubscription, current decimal.Decimal) (decimal.Decimal, error) {
	snapshot, err := e.Repo.GetEquitySnapshot(ctx, sub.FollowerUserID, sub.StrategyID)
	if err != nil {
		return decimal.Zero, err
	}
	if snapshot != nil {
		return snapshot.Equity, nil
	}
	if err := e.Repo.InsertEquitySnapshot(ctx, &models.EquitySnapshot{
		FollowerUserID: sub.FollowerUserID,
		StrategyID:     sub.StrategyID,
		Equity:         current,
	}); err != nil && e.Logger != nil {
		e.Logger.Warn("copy: persist equity snapshot",
			zap.String("follower", sub.FollowerUserID),
			zap.Error(err),
		)
	}
	return current, nil
}

func (e *Engine) emitAudit(ctx context.Context, event string, master models.MasterExecutionEvent, sub models.FollowerSubscription, metadata map[string]any) {
	if e.Audit == nil {
		return
	}
	meta := map[string]any{
		"trade_id":    master.TradeID,
		"strategy_id": sub.StrategyID,
		"follower":    sub.FollowerUserID,
		"symbol":      master.Symbol,
	}
	for k, v := range metadata {
		meta[k] = v
	}
	e.Audit.Record(ctx, event, "copy_attempt", meta)
}

func (e *Engine) notify(ctx context.Context, userID string, kind audit.NotificationKind, payload map[string]any) {
	if e.Notifier == nil {
		return
	}
	e.Notifier.Notify(ctx, userID, kind, payload)
}

func startOfDayUTC(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
