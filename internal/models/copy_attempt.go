package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptPending  AttemptStatus = "PENDING"
	AttemptExecuted AttemptStatus = "EXECUTED"
	AttemptFailed   AttemptStatus = "FAILED"
	AttemptSkipped  AttemptStatus = "SKIPPED"
)

// CopyAttempt is the append-only audit row per (master event, follower)
// pair and the system of record for idempotency: the unique index on
// (master_event_id, follower_user_id) is the enforcement point for
// exactly-once replication under event re-delivery.
type CopyAttempt struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	MasterEventID  string `gorm:"type:varchar(100);not null;uniqueIndex:idx_event_follower"`
	FollowerUserID string `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_event_follower"`

	StrategyID   uint64 `gorm:"not null;index"`
	MasterUserID string `gorm:"type:varchar(64);not null;index"`

	Symbol   string     `gorm:"type:varchar(30);not null"`
	Market   MarketKind `gorm:"type:varchar(10);not null"`
	Side     TradeSide  `gorm:"type:varchar(6);not null"`
	Leverage int        `gorm:"not null;default:1"`

	MasterSize   decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	FollowerSize decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	AllocationBefore float64 `gorm:"not null;default:0"`
	AllocationAfter  float64 `gorm:"not null;default:0"`

	Status        AttemptStatus `gorm:"type:varchar(10);not null;default:'PENDING';index"`
	FailureReason string        `gorm:"type:text"`

	// Warnings holds the risk gate's non-blocking findings as a JSON array.
	Warnings datatypes.JSON `gorm:"type:jsonb"`

	// ExchangeTradeID is the executor-reported id of the follower's order.
	ExchangeTradeID string `gorm:"type:varchar(100);index"`

	EntryPrice  decimal.Decimal  `gorm:"type:numeric(20,10);not null"`
	ExitPrice   *decimal.Decimal `gorm:"type:numeric(20,10)"`
	RealizedPnL *decimal.Decimal `gorm:"column:realized_pnl;type:numeric(30,10)"`
	PnLPct      *float64         `gorm:"column:pnl_pct"`

	OpenedAt *time.Time `gorm:"type:timestamptz;index"`
	ClosedAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (CopyAttempt) TableName() string {
	return "copy_attempts"
}

// Open reports whether the attempt holds a position that can still be closed.
func (a CopyAttempt) Open() bool {
	return a.Status == AttemptExecuted && a.ClosedAt == nil
}
