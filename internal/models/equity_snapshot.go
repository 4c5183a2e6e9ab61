package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EquitySnapshot records a follower's pre-allocation equity the first time
// a strategy copies to them. It is the stable baseline for the total-loss
// limit; without it the baseline would drift with every equity read.
type EquitySnapshot struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	FollowerUserID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_snapshot_pair"`
	StrategyID     uint64 `gorm:"not null;uniqueIndex:idx_snapshot_pair"`

	Equity decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (EquitySnapshot) TableName() string {
	return "equity_snapshots"
}
