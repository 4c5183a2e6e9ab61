package subscription

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// It implements the full interface but only the subscription methods carry
// behavior here.
type stubRepo struct {
	nextID  uint64
	subs    map[uint64]*models.FollowerSubscription
	deleted map[uint64]bool
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		nextID:  1,
		subs:    map[uint64]*models.FollowerSubscription{},
		deleted: map[uint64]bool{},
	}
}

func (s *stubRepo) InsertSubscription(ctx context.Context, item *models.FollowerSubscription) error {
	item.ID = s.nextID
	s.nextID++
	cp := *item
	s.subs[item.ID] = &cp
	return nil
}

func (s *stubRepo) UpdateSubscription(ctx context.Context, item *models.FollowerSubscription) error {
	cp := *item
	s.subs[item.ID] = &cp
	return nil
}

func (s *stubRepo) GetSubscriptionByID(ctx context.Context, id uint64) (*models.FollowerSubscription, error) {
	if s.deleted[id] {
		return nil, nil
	}
	sub, ok := s.subs[id]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (s *stubRepo) GetSubscription(ctx context.Context, strategyID uint64, followerUserID string) (*models.FollowerSubscription, error) {
	for id, sub := range s.subs {
		if s.deleted[id] {
			continue
		}
		if sub.StrategyID == strategyID && sub.FollowerUserID == followerUserID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListActiveSubscriptionsByStrategy(ctx context.Context, strategyID uint64) ([]models.FollowerSubscription, error) {
	var out []models.FollowerSubscription
	for id, sub := range s.subs {
		if s.deleted[id] {
			continue
		}
		if sub.StrategyID == strategyID && sub.Status == models.SubscriptionActive {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (s *stubRepo) ListSubscriptionsByFollower(ctx context.Context, followerUserID string) ([]models.FollowerSubscription, error) {
	var out []models.FollowerSubscription
	for id, sub := range s.subs {
		if s.deleted[id] {
			continue
		}
		if sub.FollowerUserID == followerUserID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (s *stubRepo) UpdateSubscriptionStatus(ctx context.Context, id uint64, status models.SubscriptionStatus, reason string) error {
	if sub, ok := s.subs[id]; ok {
		sub.Status = status
		sub.PausedReason = reason
	}
	return nil
}

func (s *stubRepo) DeleteSubscription(ctx context.Context, id uint64) error {
	s.deleted[id] = true
	return nil
}

func (s *stubRepo) UpsertMasterTrade(ctx context.Context, item *models.MasterTrade) error { return nil }
func (s *stubRepo) GetMasterTradeByTradeID(ctx context.Context, tradeID string) (*models.MasterTrade, error) {
	return nil, nil
}
func (s *stubRepo) CloseMasterTrade(ctx context.Context, tradeID string, exitPrice decimal.Decimal, closedAt time.Time) error {
	return nil
}
func (s *stubRepo) InsertCopyAttempt(ctx context.Context, item *models.CopyAttempt) error {
	return nil
}
func (s *stubRepo) GetCopyAttempt(ctx context.Context, masterEventID, followerUserID string) (*models.CopyAttempt, error) {
	return nil, nil
}
func (s *stubRepo) UpdateCopyAttemptStatus(ctx context.Context, id uint64, status models.AttemptStatus, updates map[string]any) error {
	return nil
}
func (s *stubRepo) CloseCopyAttempt(ctx context.Context, id uint64, exitPrice decimal.Decimal, realizedPnL decimal.Decimal, pnlPct float64, closedAt time.Time) error {
	return nil
}
func (s *stubRepo) ListOpenAttemptsByMasterTrade(ctx context.Context, masterTradeID string) ([]models.CopyAttempt, error) {
	return nil, nil
}
func (s *stubRepo) ListAttempts(ctx context.Context, params repository.ListAttemptsParams) ([]models.CopyAttempt, error) {
	return nil, nil
}
func (s *stubRepo) CountAttempts(ctx context.Context, params repository.ListAttemptsParams) (int64, error) {
	return 0, nil
}
func (s *stubRepo) MarkStalePendingAttempts(ctx context.Context, before time.Time, reason string) (int64, error) {
	return 0, nil
}
func (s *stubRepo) GetFollowerEquity(ctx context.Context, followerUserID string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (s *stubRepo) CountOpenAttempts(ctx context.Context, followerUserID string, strategyID uint64) (int, error) {
	return 0, nil
}
func (s *stubRepo) SumDailyRealizedLoss(ctx context.Context, followerUserID string, dayStart time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (s *stubRepo) SumOpenNotional(ctx context.Context, followerUserID string, strategyID uint64) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (s *stubRepo) GetEquitySnapshot(ctx context.Context, followerUserID string, strategyID uint64) (*models.EquitySnapshot, error) {
	return nil, nil
}
func (s *stubRepo) InsertEquitySnapshot(ctx context.Context, item *models.EquitySnapshot) error {
	return nil
}
func (s *stubRepo) GetActiveCredential(ctx context.Context, userID string, market models.MarketKind) (*models.APICredential, error) {
	return nil, nil
}
