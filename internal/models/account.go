package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FollowerAccount mirrors the follower's total account value as reported by
// the balance sync pipeline. The engine only reads it; it is the sizing and
// risk denominator.
type FollowerAccount struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	UserID string `gorm:"type:varchar(64);not null;uniqueIndex"`

	Equity decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (FollowerAccount) TableName() string {
	return "follower_accounts"
}
