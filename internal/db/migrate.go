package db

import (
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.FollowerAccount{},
		&models.FollowerSubscription{},
		&models.MasterTrade{},
		&models.CopyAttempt{},
		&models.APICredential{},
		&models.EquitySnapshot{},
	)
}
