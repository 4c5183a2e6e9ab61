package subscription

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/cache"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/repository"
)

var ErrNotFound = errors.New("subscription not found")

// Service owns the follow/unfollow lifecycle. Every mutation invalidates
// the strategy's cached follower list so the next fan-out sees it.
type Service struct {
	Repo   repository.Repository
	Cache  *cache.Cache
	Logger *zap.Logger
}

// Follow creates a subscription after sanitizing it. Re-following an
// existing pair is rejected; resume a paused subscription instead.
func (s *Service) Follow(ctx context.Context, sub *models.FollowerSubscription) error {
	if s == nil || s.Repo == nil {
		return errors.New("subscription service not configured")
	}
	if err := Sanitize(sub); err != nil {
		return err
	}
	existing, err := s.Repo.GetSubscription(ctx, sub.StrategyID, sub.FollowerUserID)
	if err != nil {
		return fmt.Errorf("check existing subscription: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: follower %s already subscribed to strategy %d",
			ErrInvalidConfig, sub.FollowerUserID, sub.StrategyID)
	}
	if err := s.Repo.InsertSubscription(ctx, sub); err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	s.invalidate(sub.StrategyID, sub.FollowerUserID)
	if s.Logger != nil {
		s.Logger.Info("subscription: followed",
			zap.Uint64("strategy_id", sub.StrategyID),
			zap.String("follower", sub.FollowerUserID),
			zap.String("mode", string(sub.AllocationMode)),
		)
	}
	return nil
}

// Update sanitizes and saves changed limits on an existing subscription.
func (s *Service) Update(ctx context.Context, sub *models.FollowerSubscription) error {
	if s == nil || s.Repo == nil {
		return errors.New("subscription service not configured")
	}
	if sub == nil || sub.ID == 0 {
		return fmt.Errorf("%w: missing subscription id", ErrInvalidConfig)
	}
	if err := Sanitize(sub); err != nil {
		return err
	}
	if err := s.Repo.UpdateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	s.invalidate(sub.StrategyID, sub.FollowerUserID)
	return nil
}

// Unfollow soft-deletes the pair's subscription.
func (s *Service) Unfollow(ctx context.Context, strategyID uint64, followerUserID string) error {
	sub, err := s.get(ctx, strategyID, followerUserID)
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteSubscription(ctx, sub.ID); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	s.invalidate(strategyID, followerUserID)
	if s.Logger != nil {
		s.Logger.Info("subscription: unfollowed",
			zap.Uint64("strategy_id", strategyID),
			zap.String("follower", followerUserID),
		)
	}
	return nil
}

// Pause stops copying without losing the subscription's limits.
func (s *Service) Pause(ctx context.Context, strategyID uint64, followerUserID, reason string) error {
	sub, err := s.get(ctx, strategyID, followerUserID)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdateSubscriptionStatus(ctx, sub.ID, models.SubscriptionPaused, reason); err != nil {
		return fmt.Errorf("pause subscription: %w", err)
	}
	s.invalidate(strategyID, followerUserID)
	return nil
}

// Resume reactivates a paused subscription. A subscription paused by the
// total-loss breach stays paused until the follower resumes it here.
func (s *Service) Resume(ctx context.Context, strategyID uint64, followerUserID string) error {
	sub, err := s.get(ctx, strategyID, followerUserID)
	if err != nil {
		return err
	}
	if sub.Status == models.SubscriptionStopped {
		return fmt.Errorf("%w: stopped subscriptions cannot be resumed", ErrInvalidConfig)
	}
	if err := s.Repo.UpdateSubscriptionStatus(ctx, sub.ID, models.SubscriptionActive, ""); err != nil {
		return fmt.Errorf("resume subscription: %w", err)
	}
	s.invalidate(strategyID, followerUserID)
	return nil
}

func (s *Service) ListByFollower(ctx context.Context, followerUserID string) ([]models.FollowerSubscription, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("subscription service not configured")
	}
	return s.Repo.ListSubscriptionsByFollower(ctx, followerUserID)
}

func (s *Service) get(ctx context.Context, strategyID uint64, followerUserID string) (*models.FollowerSubscription, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("subscription service not configured")
	}
	sub, err := s.Repo.GetSubscription(ctx, strategyID, followerUserID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		return nil, ErrNotFound
	}
	return sub, nil
}

func (s *Service) invalidate(strategyID uint64, followerUserID string) {
	if s.Cache == nil {
		return
	}
	s.Cache.Delete(cache.FollowersKey(strategyID))
	s.Cache.Delete(cache.SubscriptionKey(strategyID, followerUserID))
}
