package replicator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// It keeps enough state for the open and close flow tests and enforces the
// (master event, follower) uniqueness the way the real store does.
type stubRepo struct {
	mu sync.Mutex

	nextID      uint64
	subs        map[uint64]*models.FollowerSubscription
	attempts    map[uint64]*models.CopyAttempt
	trades      map[string]*models.MasterTrade
	snapshots   map[string]*models.EquitySnapshot
	equity      map[string]decimal.Decimal
	credentials map[string]*models.APICredential

	openCount    map[string]int
	dailyLoss    map[string]decimal.Decimal
	openNotional map[string]decimal.Decimal

	failFollowerList bool
	failEquity       bool
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		nextID:       1,
		subs:         map[uint64]*models.FollowerSubscription{},
		attempts:     map[uint64]*models.CopyAttempt{},
		trades:       map[string]*models.MasterTrade{},
		snapshots:    map[string]*models.EquitySnapshot{},
		equity:       map[string]decimal.Decimal{},
		credentials:  map[string]*models.APICredential{},
		openCount:    map[string]int{},
		dailyLoss:    map[string]decimal.Decimal{},
		openNotional: map[string]decimal.Decimal{},
	}
}

func (s *stubRepo) addSubscription(sub models.FollowerSubscription) *models.FollowerSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = s.nextID
	s.nextID++
	s.subs[sub.ID] = &sub
	return &sub
}

func (s *stubRepo) addCredential(userID string, market models.MarketKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[userID+"/"+string(market)] = &models.APICredential{
		UserID: userID,
		Market: market,
		Handle: "handle-" + userID,
		Active: true,
	}
}

func (s *stubRepo) attemptByPair(masterEventID, followerUserID string) *models.CopyAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.MasterEventID == masterEventID && a.FollowerUserID == followerUserID {
			cp := *a
			return &cp
		}
	}
	return nil
}

func (s *stubRepo) InsertSubscription(ctx context.Context, item *models.FollowerSubscription) error {
	s.addSubscription(*item)
	return nil
}

func (s *stubRepo) UpdateSubscription(ctx context.Context, item *models.FollowerSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.subs[item.ID] = &cp
	return nil
}

func (s *stubRepo) GetSubscriptionByID(ctx context.Context, id uint64) (*models.FollowerSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (s *stubRepo) GetSubscription(ctx context.Context, strategyID uint64, followerUserID string) (*models.FollowerSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.StrategyID == strategyID && sub.FollowerUserID == followerUserID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListActiveSubscriptionsByStrategy(ctx context.Context, strategyID uint64) ([]models.FollowerSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFollowerList {
		return nil, errors.New("store unavailable")
	}
	var out []models.FollowerSubscription
	for _, sub := range s.subs {
		if sub.StrategyID == strategyID && sub.Status == models.SubscriptionActive {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (s *stubRepo) ListSubscriptionsByFollower(ctx context.Context, followerUserID string) ([]models.FollowerSubscription, error) {
	return nil, nil
}

func (s *stubRepo) UpdateSubscriptionStatus(ctx context.Context, id uint64, status models.SubscriptionStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[id]; ok {
		sub.Status = status
		sub.PausedReason = reason
	}
	return nil
}

func (s *stubRepo) DeleteSubscription(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
	return nil
}

func (s *stubRepo) UpsertMasterTrade(ctx context.Context, item *models.MasterTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.trades[item.TradeID] = &cp
	return nil
}

func (s *stubRepo) GetMasterTradeByTradeID(ctx context.Context, tradeID string) (*models.MasterTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.trades[tradeID]
	if !ok {
		return nil, nil
	}
	cp := *trade
	return &cp, nil
}

func (s *stubRepo) CloseMasterTrade(ctx context.Context, tradeID string, exitPrice decimal.Decimal, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if trade, ok := s.trades[tradeID]; ok {
		trade.Closed = true
		trade.ExitPrice = &exitPrice
		trade.ClosedAt = &closedAt
	}
	return nil
}

func (s *stubRepo) InsertCopyAttempt(ctx context.Context, item *models.CopyAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.MasterEventID == item.MasterEventID && a.FollowerUserID == item.FollowerUserID {
			return repository.ErrDuplicateAttempt
		}
	}
	item.ID = s.nextID
	s.nextID++
	item.CreatedAt = time.Now()
	cp := *item
	s.attempts[item.ID] = &cp
	return nil
}

func (s *stubRepo) GetCopyAttempt(ctx context.Context, masterEventID, followerUserID string) (*models.CopyAttempt, error) {
	return s.attemptByPair(masterEventID, followerUserID), nil
}

func (s *stubRepo) UpdateCopyAttemptStatus(ctx context.Context, id uint64, status models.AttemptStatus, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil
	}
	a.Status = status
	if v, ok := updates["failure_reason"].(string); ok {
		a.FailureReason = v
	}
	if v, ok := updates["exchange_trade_id"].(string); ok {
		a.ExchangeTradeID = v
	}
	if v, ok := updates["opened_at"].(time.Time); ok {
		a.OpenedAt = &v
	}
	return nil
}

func (s *stubRepo) CloseCopyAttempt(ctx context.Context, id uint64, exitPrice decimal.Decimal, realizedPnL decimal.Decimal, pnlPct float64, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil
	}
	a.ExitPrice = &exitPrice
	a.RealizedPnL = &realizedPnL
	a.PnLPct = &pnlPct
	a.ClosedAt = &closedAt
	return nil
}

func (s *stubRepo) ListOpenAttemptsByMasterTrade(ctx context.Context, masterTradeID string) ([]models.CopyAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CopyAttempt
	for _, a := range s.attempts {
		if a.MasterEventID == masterTradeID && a.Open() {
			out = append(out, *a)
		}
	}
	return out, nil
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
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failEquity {
		return decimal.Zero, errors.New("equity source unavailable")
	}
	return s.equity[followerUserID], nil
}

func (s *stubRepo) CountOpenAttempts(ctx context.Context, followerUserID string, strategyID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openCount[followerUserID], nil
}

func (s *stubRepo) SumDailyRealizedLoss(ctx context.Context, followerUserID string, dayStart time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyLoss[followerUserID], nil
}

func (s *stubRepo) SumOpenNotional(ctx context.Context, followerUserID string, strategyID uint64) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openNotional[followerUserID], nil
}

func (s *stubRepo) GetEquitySnapshot(ctx context.Context, followerUserID string, strategyID uint64) (*models.EquitySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[followerUserID]
	if !ok {
		return nil, nil
	}
	cp := *snap
	return &cp, nil
}

func (s *stubRepo) InsertEquitySnapshot(ctx context.Context, item *models.EquitySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[item.FollowerUserID]; ok {
		return nil
	}
	cp := *item
	s.snapshots[item.FollowerUserID] = &cp
	return nil
}

func (s *stubRepo) GetActiveCredential(ctx context.Context, userID string, market models.MarketKind) (*models.APICredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credentials[userID+"/"+string(market)]
	if !ok {
		return nil, nil
	}
	cp := *cred
	return &cp, nil
}
