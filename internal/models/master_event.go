package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketKind distinguishes spot from leveraged futures execution.
type MarketKind string

const (
	MarketSpot    MarketKind = "spot"
	MarketFutures MarketKind = "futures"
)

type TradeSide string

const (
	SideLong  TradeSide = "long"
	SideShort TradeSide = "short"
)

// TradeAction is what the master did: opened, closed, or trimmed a position.
type TradeAction string

const (
	ActionOpen         TradeAction = "open"
	ActionClose        TradeAction = "close"
	ActionPartialClose TradeAction = "partial_close"
)

// MasterExecutionEvent is the immutable fact describing one trade action by
// a strategy owner. It arrives over the trigger webhook or the event stream
// and is never mutated once created.
type MasterExecutionEvent struct {
	StrategyID   uint64 `json:"strategy_id"`
	MasterUserID string `json:"master_user_id"`

	// TradeID correlates opens with closes and is half of the idempotency
	// key for copy attempts. SignalID is optional upstream correlation.
	TradeID  string  `json:"trade_id"`
	SignalID *string `json:"signal_id,omitempty"`

	Symbol   string      `json:"symbol"`
	Market   MarketKind  `json:"market"`
	Side     TradeSide   `json:"side"`
	Action   TradeAction `json:"action"`
	Leverage int         `json:"leverage,omitempty"`

	PositionSize decimal.Decimal  `json:"position_size"`
	EntryPrice   decimal.Decimal  `json:"entry_price"`
	ExitPrice    *decimal.Decimal `json:"exit_price,omitempty"`
	StopLoss     *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit   *decimal.Decimal `json:"take_profit,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
