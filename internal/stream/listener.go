package stream

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/config"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/models"
	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/replicator"
)

// Listener consumes master execution events from the platform's trade feed
// and hands each one to the replication engine. It reconnects with a flat
// delay; replay protection is the engine's recency check plus the attempt
// idempotency, not the transport.
type Listener struct {
	URL            string
	ReconnectDelay time.Duration
	Engine         *replicator.Engine
	Logger         *zap.Logger
}

func NewListener(cfg config.StreamConfig, engine *replicator.Engine, logger *zap.Logger) *Listener {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	return &Listener{
		URL:            cfg.URL,
		ReconnectDelay: delay,
		Engine:         engine,
		Logger:         logger,
	}
}

// Run blocks until ctx is cancelled, redialing on every connection loss.
func (l *Listener) Run(ctx context.Context) error {
	if l == nil || l.Engine == nil {
		return errors.New("stream listener not configured")
	}
	if l.URL == "" {
		return errors.New("stream url is empty")
	}
	for {
		if err := l.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if l.Logger != nil {
				l.Logger.Warn("stream: connection lost", zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.ReconnectDelay):
		}
	}
}

func (l *Listener) consume(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, l.URL, nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "shutting down") }()
	conn.SetReadLimit(1 << 20)

	if l.Logger != nil {
		l.Logger.Info("stream: connected", zap.String("url", l.URL))
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		l.handleMessage(ctx, data)
	}
}

func (l *Listener) handleMessage(ctx context.Context, data []byte) {
	var event models.MasterExecutionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		if l.Logger != nil {
			l.Logger.Warn("stream: malformed event", zap.Error(err))
		}
		return
	}
	if event.TradeID == "" || event.StrategyID == 0 {
		if l.Logger != nil {
			l.Logger.Debug("stream: skipping incomplete event",
				zap.String("trade_id", event.TradeID),
				zap.Uint64("strategy_id", event.StrategyID),
			)
		}
		return
	}

	summary, err := l.Engine.HandleMasterExecution(ctx, event)
	if err != nil {
		if l.Logger != nil {
			l.Logger.Error("stream: replication failed",
				zap.String("trade_id", event.TradeID),
				zap.Error(err),
			)
		}
		return
	}
	if l.Logger != nil {
		l.Logger.Info("stream: event processed",
			zap.String("trade_id", event.TradeID),
			zap.String("action", string(event.Action)),
			zap.Int("copied", summary.Copied),
			zap.Int("failed", summary.Failed),
		)
	}
}
