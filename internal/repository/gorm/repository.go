package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Subscriptions ----------------------------------------------------------

func (s *Store) InsertSubscription(ctx context.Context, item *models.FollowerSubscription) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateSubscription(ctx context.Context, item *models.FollowerSubscription) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) GetSubscriptionByID(ctx context.Context, id uint64) (*models.FollowerSubscription, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.FollowerSubscription
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetSubscription(ctx context.Context, strategyID uint64, followerUserID string) (*models.FollowerSubscription, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	followerUserID = strings.TrimSpace(followerUserID)
	if strategyID == 0 || followerUserID == "" {
		return nil, nil
	}
	var item models.FollowerSubscription
	err := s.db.WithContext(ctx).
		Where("strategy_id = ? AND follower_user_id = ?", strategyID, followerUserID).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListActiveSubscriptionsByStrategy(ctx context.Context, strategyID uint64) ([]models.FollowerSubscription, error) {
	if s == nil || s.db == nil || strategyID == 0 {
		return nil, nil
	}
	var items []models.FollowerSubscription
	err := s.db.WithContext(ctx).
		Where("strategy_id = ? AND status = ?", strategyID, models.SubscriptionActive).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListSubscriptionsByFollower(ctx context.Context, followerUserID string) ([]models.FollowerSubscription, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	followerUserID = strings.TrimSpace(followerUserID)
	if followerUserID == "" {
		return nil, nil
	}
	var items []models.FollowerSubscription
	err := s.db.WithContext(ctx).
		Where("follower_user_id = ?", followerUserID).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateSubscriptionStatus(ctx context.Context, id uint64, status models.SubscriptionStatus, reason string) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.FollowerSubscription{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"paused_reason": reason,
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (s *Store) DeleteSubscription(ctx context.Context, id uint64) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Delete(&models.FollowerSubscription{}, id).Error
}

// --- Master trades ----------------------------------------------------------

func (s *Store) UpsertMasterTrade(ctx context.Context, item *models.MasterTrade) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.TradeID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "trade_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"size",
			"entry_price",
			"leverage",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetMasterTradeByTradeID(ctx context.Context, tradeID string) (*models.MasterTrade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	tradeID = strings.TrimSpace(tradeID)
	if tradeID == "" {
		return nil, nil
	}
	var item models.MasterTrade
	err := s.db.WithContext(ctx).Where("trade_id = ?", tradeID).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CloseMasterTrade(ctx context.Context, tradeID string, exitPrice decimal.Decimal, closedAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	tradeID = strings.TrimSpace(tradeID)
	if tradeID == "" {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.MasterTrade{}).
		Where("trade_id = ?", tradeID).
		Updates(map[string]any{
			"closed":     true,
			"exit_price": exitPrice,
			"closed_at":  closedAt.UTC(),
			"updated_at": time.Now().UTC(),
		}).Error
}

// --- Copy attempts ----------------------------------------------------------

func (s *Store) InsertCopyAttempt(ctx context.Context, item *models.CopyAttempt) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	err := s.db.WithContext(ctx).Create(item).Error
	if err != nil && (errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err)) {
		return repository.ErrDuplicateAttempt
	}
	return err
}

// isUniqueViolation matches the postgres duplicate-key error when the gorm
// translator is not active.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key value")
}

func (s *Store) GetCopyAttempt(ctx context.Context, masterEventID, followerUserID string) (*models.CopyAttempt, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	masterEventID = strings.TrimSpace(masterEventID)
	followerUserID = strings.TrimSpace(followerUserID)
	if masterEventID == "" || followerUserID == "" {
		return nil, nil
	}
	var item models.CopyAttempt
	err := s.db.WithContext(ctx).
		Where("master_event_id = ? AND follower_user_id = ?", masterEventID, followerUserID).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateCopyAttemptStatus(ctx context.Context, id uint64, status models.AttemptStatus, updates map[string]any) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	values := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range updates {
		values[k] = v
	}
	return s.db.WithContext(ctx).
		Model(&models.CopyAttempt{}).
		Where("id = ?", id).
		Updates(values).Error
}

func (s *Store) CloseCopyAttempt(ctx context.Context, id uint64, exitPrice decimal.Decimal, realizedPnL decimal.Decimal, pnlPct float64, closedAt time.Time) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.CopyAttempt{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"exit_price":   exitPrice,
			"realized_pnl": realizedPnL,
			"pnl_pct":      pnlPct,
			"closed_at":    closedAt.UTC(),
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (s *Store) ListOpenAttemptsByMasterTrade(ctx context.Context, masterTradeID string) ([]models.CopyAttempt, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	masterTradeID = strings.TrimSpace(masterTradeID)
	if masterTradeID == "" {
		return nil, nil
	}
	var items []models.CopyAttempt
	err := s.db.WithContext(ctx).
		Where("master_event_id = ? AND status = ? AND closed_at IS NULL", masterTradeID, models.AttemptExecuted).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListAttempts(ctx context.Context, params repository.ListAttemptsParams) ([]models.CopyAttempt, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.attemptQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.CopyAttempt
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountAttempts(ctx context.Context, params repository.ListAttemptsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	if err := s.attemptQuery(ctx, params).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) attemptQuery(ctx context.Context, params repository.ListAttemptsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.CopyAttempt{})
	if params.FollowerUserID != nil && strings.TrimSpace(*params.FollowerUserID) != "" {
		query = query.Where("follower_user_id = ?", strings.TrimSpace(*params.FollowerUserID))
	}
	if params.StrategyID != nil && *params.StrategyID != 0 {
		query = query.Where("strategy_id = ?", *params.StrategyID)
	}
	if params.Status != nil && *params.Status != "" {
		query = query.Where("status = ?", *params.Status)
	}
	return query
}

func (s *Store) MarkStalePendingAttempts(ctx context.Context, before time.Time, reason string) (int64, error) {
	if s == nil || s.db == nil || before.IsZero() {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.CopyAttempt{}).
		Where("status = ? AND created_at < ?", models.AttemptPending, before.UTC()).
		Updates(map[string]any{
			"status":         models.AttemptFailed,
			"failure_reason": reason,
			"updated_at":     time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// --- Aggregates -------------------------------------------------------------

func (s *Store) GetFollowerEquity(ctx context.Context, followerUserID string) (decimal.Decimal, error) {
	if s == nil || s.db == nil {
		return decimal.Zero, nil
	}
	followerUserID = strings.TrimSpace(followerUserID)
	if followerUserID == "" {
		return decimal.Zero, nil
	}
	var item models.FollowerAccount
	err := s.db.WithContext(ctx).Where("user_id = ?", followerUserID).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return item.Equity, nil
}

func (s *Store) CountOpenAttempts(ctx context.Context, followerUserID string, strategyID uint64) (int, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.CopyAttempt{}).
		Where("follower_user_id = ? AND strategy_id = ? AND status = ? AND closed_at IS NULL",
			strings.TrimSpace(followerUserID), strategyID, models.AttemptExecuted).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// SumDailyRealizedLoss returns today's realized loss as a positive amount.
// Winning days sum to zero.
func (s *Store) SumDailyRealizedLoss(ctx context.Context, followerUserID string, dayStart time.Time) (decimal.Decimal, error) {
	if s == nil || s.db == nil || dayStart.IsZero() {
		return decimal.Zero, nil
	}
	var out float64
	err := s.db.WithContext(ctx).
		Table("copy_attempts").
		Select("COALESCE(SUM(COALESCE(-realized_pnl,0)),0)").
		Where("follower_user_id = ? AND closed_at >= ? AND realized_pnl < 0",
			strings.TrimSpace(followerUserID), dayStart.UTC()).
		Scan(&out).Error
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(out), nil
}

func (s *Store) SumOpenNotional(ctx context.Context, followerUserID string, strategyID uint64) (decimal.Decimal, error) {
	if s == nil || s.db == nil {
		return decimal.Zero, nil
	}
	var out float64
	err := s.db.WithContext(ctx).
		Table("copy_attempts").
		Select("COALESCE(SUM(follower_size),0)").
		Where("follower_user_id = ? AND strategy_id = ? AND status = ? AND closed_at IS NULL",
			strings.TrimSpace(followerUserID), strategyID, models.AttemptExecuted).
		Scan(&out).Error
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(out), nil
}

// --- Equity snapshots -------------------------------------------------------

func (s *Store) GetEquitySnapshot(ctx context.Context, followerUserID string, strategyID uint64) (*models.EquitySnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	followerUserID = strings.TrimSpace(followerUserID)
	if followerUserID == "" || strategyID == 0 {
		return nil, nil
	}
	var item models.EquitySnapshot
	err := s.db.WithContext(ctx).
		Where("follower_user_id = ? AND strategy_id = ?", followerUserID, strategyID).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) InsertEquitySnapshot(ctx context.Context, item *models.EquitySnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	// First writer wins; concurrent inserts for the same pair are no-ops.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "follower_user_id"}, {Name: "strategy_id"}},
		DoNothing: true,
	}).Create(item).Error
}

// --- Credentials ------------------------------------------------------------

func (s *Store) GetActiveCredential(ctx context.Context, userID string, market models.MarketKind) (*models.APICredential, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	var item models.APICredential
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND market = ? AND active = ?", userID, market, true).
		Order("created_at desc").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
