package executor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// Paper simulates fills without touching an exchange. It is the dry-run
// executor wired when engine.dry_run is set; every well-formed order
// "fills" immediately at the requested price.
type Paper struct {
	Logger *zap.Logger

	seq atomic.Uint64
}

func (p *Paper) ExecuteTrade(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if req.PositionSize.Sign() <= 0 {
		return Result{}, errors.New("position size must be positive")
	}
	if req.Price.Sign() <= 0 {
		return Result{}, errors.New("price must be positive")
	}

	tradeID := fmt.Sprintf("paper-%s-%d", req.FollowerUserID, p.seq.Add(1))
	if p.Logger != nil {
		p.Logger.Info("paper fill",
			zap.String("trade_id", tradeID),
			zap.String("follower", req.FollowerUserID),
			zap.String("symbol", req.Symbol),
			zap.String("side", string(req.Side)),
			zap.String("size", req.PositionSize.StringFixed(2)),
			zap.String("price", req.Price.String()),
			zap.Int("leverage", req.Leverage),
			zap.Bool("reduce_only", req.ReduceOnly),
		)
	}
	return Result{TradeID: tradeID}, nil
}
