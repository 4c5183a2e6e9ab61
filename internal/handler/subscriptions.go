package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/subscription"
)

type SubscriptionHandler struct {
	Service *subscription.Service
}

func (h *SubscriptionHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/subscriptions")
	group.POST("", h.follow)
	group.GET("", h.listByFollower)
	group.PUT("/:strategy_id/:follower_id", h.update)
	group.POST("/:strategy_id/:follower_id/pause", h.pause)
	group.POST("/:strategy_id/:follower_id/resume", h.resume)
	group.DELETE("/:strategy_id/:follower_id", h.unfollow)
}

type subscriptionRequest struct {
	StrategyID      uint64  `json:"strategy_id"`
	FollowerUserID  string  `json:"follower_user_id"`
	AllocationMode  string  `json:"allocation_mode"`
	AllocationValue string  `json:"allocation_value"`
	MaxDailyLossPct float64 `json:"max_daily_loss_pct"`
	MaxTotalLossPct float64 `json:"max_total_loss_pct"`
	MaxOpenTrades   int     `json:"max_open_trades"`
	MaxLeverage     int     `json:"max_leverage"`
	RiskMultiplier  float64 `json:"risk_multiplier"`
}

func (r subscriptionRequest) toModel() (*models.FollowerSubscription, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(r.AllocationValue))
	if err != nil {
		return nil, errors.New("allocation_value must be a decimal string")
	}
	return &models.FollowerSubscription{
		StrategyID:      r.StrategyID,
		FollowerUserID:  r.FollowerUserID,
		AllocationMode:  models.AllocationMode(strings.ToUpper(strings.TrimSpace(r.AllocationMode))),
		AllocationValue: value,
		MaxDailyLossPct: r.MaxDailyLossPct,
		MaxTotalLossPct: r.MaxTotalLossPct,
		MaxOpenTrades:   r.MaxOpenTrades,
		MaxLeverage:     r.MaxLeverage,
		RiskMultiplier:  r.RiskMultiplier,
	}, nil
}

func (h *SubscriptionHandler) follow(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid payload: "+err.Error(), nil)
		return
	}
	sub, err := req.toModel()
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Service.Follow(c.Request.Context(), sub); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, subscription.ErrInvalidConfig) {
			status = http.StatusBadRequest
		}
		Error(c, status, err.Error(), nil)
		return
	}
	Ok(c, sub, nil)
}

func (h *SubscriptionHandler) listByFollower(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	follower := strings.TrimSpace(c.Query("follower_id"))
	if follower == "" {
		Error(c, http.StatusBadRequest, "follower_id required", nil)
		return
	}
	items, err := h.Service.ListByFollower(c.Request.Context(), follower)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"count": len(items)})
}

func (h *SubscriptionHandler) update(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	strategyID, followerID, ok := pairParams(c)
	if !ok {
		return
	}
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid payload: "+err.Error(), nil)
		return
	}
	req.StrategyID = strategyID
	req.FollowerUserID = followerID
	sub, err := req.toModel()
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	existing, err := h.Service.Repo.GetSubscription(c.Request.Context(), strategyID, followerID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if existing == nil {
		Error(c, http.StatusNotFound, "subscription not found", nil)
		return
	}
	sub.ID = existing.ID
	sub.Status = existing.Status
	if err := h.Service.Update(c.Request.Context(), sub); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, subscription.ErrInvalidConfig) {
			status = http.StatusBadRequest
		}
		Error(c, status, err.Error(), nil)
		return
	}
	Ok(c, sub, nil)
}

func (h *SubscriptionHandler) pause(c *gin.Context) {
	h.transition(c, func(strategyID uint64, followerID string) error {
		reason := strings.TrimSpace(c.Query("reason"))
		if reason == "" {
			reason = "paused by user"
		}
		return h.Service.Pause(c.Request.Context(), strategyID, followerID, reason)
	})
}

func (h *SubscriptionHandler) resume(c *gin.Context) {
	h.transition(c, func(strategyID uint64, followerID string) error {
		return h.Service.Resume(c.Request.Context(), strategyID, followerID)
	})
}

func (h *SubscriptionHandler) unfollow(c *gin.Context) {
	h.transition(c, func(strategyID uint64, followerID string) error {
		return h.Service.Unfollow(c.Request.Context(), strategyID, followerID)
	})
}

func (h *SubscriptionHandler) transition(c *gin.Context, op func(uint64, string) error) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	strategyID, followerID, ok := pairParams(c)
	if !ok {
		return
	}
	if err := op(strategyID, followerID); err != nil {
		switch {
		case errors.Is(err, subscription.ErrNotFound):
			Error(c, http.StatusNotFound, err.Error(), nil)
		case errors.Is(err, subscription.ErrInvalidConfig):
			Error(c, http.StatusBadRequest, err.Error(), nil)
		default:
			Error(c, http.StatusBadGateway, err.Error(), nil)
		}
		return
	}
	Ok(c, gin.H{"strategy_id": strategyID, "follower_id": followerID}, nil)
}

func pairParams(c *gin.Context) (uint64, string, bool) {
	strategyID, err := strconv.ParseUint(strings.TrimSpace(c.Param("strategy_id")), 10, 64)
	if err != nil || strategyID == 0 {
		Error(c, http.StatusBadRequest, "invalid strategy_id", nil)
		return 0, "", false
	}
	followerID := strings.TrimSpace(c.Param("follower_id"))
	if followerID == "" {
		Error(c, http.StatusBadRequest, "follower_id required", nil)
		return 0, "", false
	}
	return strategyID, followerID, true
}
