package executor

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
)

// Request carries everything one follower execution needs. CredentialHandle
// is the opaque key reference resolved by the orchestrator; the executor
// owns turning it into signed exchange calls.
type Request struct {
	FollowerUserID   string
	Symbol           string
	Side             models.TradeSide
	Market           models.MarketKind
	PositionSize     decimal.Decimal
	Price            decimal.Decimal
	StopLoss         *decimal.Decimal
	TakeProfit       *decimal.Decimal
	Leverage         int
	CredentialHandle string
	// ReduceOnly marks an opposing order that closes an open position.
	ReduceOnly bool
}

// Result is the executor's report for one order.
type Result struct {
	TradeID string
}

// Executor places one order per call. The orchestrator calls it exactly
// once per attempt; retries, if any, are the executor's own concern. An
// error here becomes a FAILED attempt record.
type Executor interface {
	ExecuteTrade(ctx context.Context, req Request) (Result, error)
}
