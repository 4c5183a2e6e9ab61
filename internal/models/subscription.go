package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "ACTIVE"
	SubscriptionPaused  SubscriptionStatus = "PAUSED"
	SubscriptionStopped SubscriptionStatus = "STOPPED"
)

type AllocationMode string

const (
	AllocationPercent AllocationMode = "PERCENT"
	AllocationFixed   AllocationMode = "FIXED"
)

// FollowerSubscription is one (follower, strategy) pair. Mutated by the
// owning follower, by the risk gate (auto-pause on total-loss breach), or
// by an operator; soft-deleted on unfollow.
type FollowerSubscription struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	StrategyID     uint64 `gorm:"not null;index;uniqueIndex:idx_follower_strategy"`
	FollowerUserID string `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_follower_strategy"`

	Status SubscriptionStatus `gorm:"type:varchar(10);not null;default:'ACTIVE';index"`

	AllocationMode  AllocationMode  `gorm:"type:varchar(10);not null;default:'PERCENT'"`
	AllocationValue decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	// Risk limits. Zero values for the loss limits mean "no limit".
	MaxDailyLossPct float64 `gorm:"not null;default:0"`
	MaxTotalLossPct float64 `gorm:"not null;default:0"`
	MaxOpenTrades   int     `gorm:"not null;default:5"`
	MaxLeverage     int     `gorm:"not null;default:1"`

	// RiskMultiplier linearly scales the sized position after allocation.
	RiskMultiplier float64 `gorm:"not null;default:1"`

	PausedReason string `gorm:"type:text"`

	CreatedAt time.Time      `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"type:timestamptz;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (FollowerSubscription) TableName() string {
	return "follower_subscriptions"
}
