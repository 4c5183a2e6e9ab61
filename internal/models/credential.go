package models

import (
	"time"
)

// APICredential is a follower's exchange API key handle for one market
// kind. The engine never sees secrets; it carries the opaque handle to the
// trade executor, which owns decryption and signing.
type APICredential struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	UserID string `gorm:"type:varchar(64);not null;index:idx_user_market"`

	Market MarketKind `gorm:"type:varchar(10);not null;index:idx_user_market"`
	Label  string     `gorm:"type:varchar(100)"`

	// Handle is the reference the executor resolves to real credentials.
	Handle string `gorm:"type:varchar(200);not null"`
	Active bool   `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (APICredential) TableName() string {
	return "api_credentials"
}
