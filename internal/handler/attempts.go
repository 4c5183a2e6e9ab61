package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/repository"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/sizing"
)

type AttemptHandler struct {
	Repo repository.Repository
}

func (h *AttemptHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/attempts")
	group.GET("", h.list)
	group.GET("/stats", h.stats)
}

func (h *AttemptHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params, ok := h.listParams(c)
	if !ok {
		return
	}
	items, err := h.Repo.ListAttempts(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountAttempts(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{
		"total":  total,
		"limit":  params.Limit,
		"offset": params.Offset,
	})
}

// stats summarizes a follower's closed attempts: win rate, average return,
// total realized PnL.
func (h *AttemptHandler) stats(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params, ok := h.listParams(c)
	if !ok {
		return
	}
	if params.FollowerUserID == nil {
		Error(c, http.StatusBadRequest, "follower_id required", nil)
		return
	}
	status := models.AttemptExecuted
	params.Status = &status
	params.Limit = 500
	params.Offset = 0

	items, err := h.Repo.ListAttempts(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, sizing.Aggregate(items), nil)
}

func (h *AttemptHandler) listParams(c *gin.Context) (repository.ListAttemptsParams, bool) {
	var params repository.ListAttemptsParams

	if follower := strings.TrimSpace(c.Query("follower_id")); follower != "" {
		params.FollowerUserID = &follower
	}
	if raw := strings.TrimSpace(c.Query("strategy_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid strategy_id", nil)
			return params, false
		}
		params.StrategyID = &id
	}
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("status"))); raw != "" {
		status := models.AttemptStatus(raw)
		switch status {
		case models.AttemptPending, models.AttemptExecuted, models.AttemptFailed, models.AttemptSkipped:
			params.Status = &status
		default:
			Error(c, http.StatusBadRequest, "invalid status", nil)
			return params, false
		}
	}
	params.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	params.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	params.OrderBy = strings.TrimSpace(c.Query("order_by"))
	if raw := strings.TrimSpace(c.Query("asc")); raw != "" {
		asc := raw == "true" || raw == "1"
		params.Asc = &asc
	}
	return params, true
}
