package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/replicator"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/scheduler"
)

// TriggerHandler is the webhook surface the platform calls when a master
// trade opens or closes. It answers with the fan-out summary; a timed-out
// drain still returns 200 with complete=false.
type TriggerHandler struct {
	Engine    *replicator.Engine
	Scheduler *scheduler.Scheduler
}

func (h *TriggerHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/events/master", h.trigger)
	r.GET("/api/v1/queue", h.queueStatus)
	r.DELETE("/api/v1/queue", h.clearQueue)
	r.PUT("/api/v1/queue/limits", h.updateLimits)
}

func (h *TriggerHandler) trigger(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	var event models.MasterExecutionEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		Error(c, http.StatusBadRequest, "invalid event payload: "+err.Error(), nil)
		return
	}
	if event.TradeID == "" || event.StrategyID == 0 {
		Error(c, http.StatusBadRequest, "trade_id and strategy_id are required", nil)
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	summary, err := h.Engine.HandleMasterExecution(c.Request.Context(), event)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, summary, nil)
}

func (h *TriggerHandler) queueStatus(c *gin.Context) {
	if h.Scheduler == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	limits := h.Scheduler.Limits()
	Ok(c, gin.H{
		"depth":          h.Scheduler.QueueDepth(),
		"max_batch_size": limits.MaxBatchSize,
		"batch_delay_ms": limits.BatchDelay.Milliseconds(),
		"max_concurrent": limits.MaxConcurrent,
	}, nil)
}

func (h *TriggerHandler) clearQueue(c *gin.Context) {
	if h.Scheduler == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	dropped := h.Scheduler.Clear()
	Ok(c, gin.H{"dropped": dropped}, nil)
}

type limitsRequest struct {
	MaxBatchSize  int   `json:"max_batch_size"`
	BatchDelayMs  int64 `json:"batch_delay_ms"`
	MaxConcurrent int   `json:"max_concurrent"`
}

func (h *TriggerHandler) updateLimits(c *gin.Context) {
	if h.Scheduler == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	var req limitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid limits payload: "+err.Error(), nil)
		return
	}
	h.Scheduler.UpdateLimits(scheduler.Limits{
		MaxBatchSize:  req.MaxBatchSize,
		BatchDelay:    time.Duration(req.BatchDelayMs) * time.Millisecond,
		MaxConcurrent: req.MaxConcurrent,
	})
	limits := h.Scheduler.Limits()
	Ok(c, gin.H{
		"max_batch_size": limits.MaxBatchSize,
		"batch_delay_ms": limits.BatchDelay.Milliseconds(),
		"max_concurrent": limits.MaxConcurrent,
	}, nil)
}
