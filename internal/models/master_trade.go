package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MasterTrade is the persisted record of a master execution, kept so the
// close flow can resolve the original entry price by trade id.
type MasterTrade struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	TradeID string `gorm:"type:varchar(100);not null;uniqueIndex"`

	StrategyID   uint64 `gorm:"not null;index"`
	MasterUserID string `gorm:"type:varchar(64);not null;index"`

	Symbol   string     `gorm:"type:varchar(30);not null"`
	Market   MarketKind `gorm:"type:varchar(10);not null"`
	Side     TradeSide  `gorm:"type:varchar(6);not null"`
	Leverage int        `gorm:"not null;default:1"`

	Size       decimal.Decimal  `gorm:"type:numeric(30,10);not null"`
	EntryPrice decimal.Decimal  `gorm:"type:numeric(20,10);not null"`
	ExitPrice  *decimal.Decimal `gorm:"type:numeric(20,10)"`

	Closed   bool       `gorm:"not null;default:false;index"`
	OpenedAt time.Time  `gorm:"type:timestamptz;not null"`
	ClosedAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (MasterTrade) TableName() string {
	return "master_trades"
}
