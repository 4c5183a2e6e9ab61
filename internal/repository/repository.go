package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
)

// ErrDuplicateAttempt is returned by InsertCopyAttempt when a row for the
// same (master event, follower) pair already exists. The unique index is
// the idempotency enforcement point; callers treat this as "already copied".
var ErrDuplicateAttempt = errors.New("copy attempt already recorded")

type ListAttemptsParams struct {
	FollowerUserID *string
	StrategyID     *uint64
	Status         *models.AttemptStatus
	Limit          int
	Offset         int
	OrderBy        string
	Asc            *bool
}

// Repository is the persistence collaborator consumed by the replication
// engine. The engine depends only on this interface; the gorm
// implementation lives in repository/gorm.
type Repository interface {
	// Subscriptions.
	InsertSubscription(ctx context.Context, item *models.FollowerSubscription) error
	UpdateSubscription(ctx context.Context, item *models.FollowerSubscription) error
	GetSubscriptionByID(ctx context.Context, id uint64) (*models.FollowerSubscription, error)
	GetSubscription(ctx context.Context, strategyID uint64, followerUserID string) (*models.FollowerSubscription, error)
	ListActiveSubscriptionsByStrategy(ctx context.Context, strategyID uint64) ([]models.FollowerSubscription, error)
	ListSubscriptionsByFollower(ctx context.Context, followerUserID string) ([]models.FollowerSubscription, error)
	UpdateSubscriptionStatus(ctx context.Context, id uint64, status models.SubscriptionStatus, reason string) error
	DeleteSubscription(ctx context.Context, id uint64) error

	// Master trades.
	UpsertMasterTrade(ctx context.Context, item *models.MasterTrade) error
	GetMasterTradeByTradeID(ctx context.Context, tradeID string) (*models.MasterTrade, error)
	CloseMasterTrade(ctx context.Context, tradeID string, exitPrice decimal.Decimal, closedAt time.Time) error

	// Copy attempts.
	InsertCopyAttempt(ctx context.Context, item *models.CopyAttempt) error
	GetCopyAttempt(ctx context.Context, masterEventID, followerUserID string) (*models.CopyAttempt, error)
	UpdateCopyAttemptStatus(ctx context.Context, id uint64, status models.AttemptStatus, updates map[string]any) error
	CloseCopyAttempt(ctx context.Context, id uint64, exitPrice decimal.Decimal, realizedPnL decimal.Decimal, pnlPct float64, closedAt time.Time) error
	ListOpenAttemptsByMasterTrade(ctx context.Context, masterTradeID string) ([]models.CopyAttempt, error)
	ListAttempts(ctx context.Context, params ListAttemptsParams) ([]models.CopyAttempt, error)
	CountAttempts(ctx context.Context, params ListAttemptsParams) (int64, error)
	MarkStalePendingAttempts(ctx context.Context, before time.Time, reason string) (int64, error)

	// Per-follower aggregates the risk gate needs.
	GetFollowerEquity(ctx context.Context, followerUserID string) (decimal.Decimal, error)
	CountOpenAttempts(ctx context.Context, followerUserID string, strategyID uint64) (int, error)
	SumDailyRealizedLoss(ctx context.Context, followerUserID string, dayStart time.Time) (decimal.Decimal, error)
	SumOpenNotional(ctx context.Context, followerUserID string, strategyID uint64) (decimal.Decimal, error)

	// Equity snapshots (total-loss baseline).
	GetEquitySnapshot(ctx context.Context, followerUserID string, strategyID uint64) (*models.EquitySnapshot, error)
	InsertEquitySnapshot(ctx context.Context, item *models.EquitySnapshot) error

	// Credentials.
	GetActiveCredential(ctx context.Context, userID string, market models.MarketKind) (*models.APICredential, error)
}
