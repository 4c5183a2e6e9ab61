package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cylendralabs-blip/cylendra.com-sub004/internal/config"
)

// Client posts audit events and notifications to the platform sidecar API.
// All calls log-and-swallow; a down sidecar must never block or fail a
// replication. An empty base URL turns every call into a no-op.
type Client struct {
	BaseURL string
	APIKey  string
	Logger  *zap.Logger

	HTTP *http.Client
}

func NewClient(cfg config.SidecarConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Logger:  logger,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Record(ctx context.Context, event, entity string, metadata map[string]any) {
	if c == nil || c.BaseURL == "" {
		return
	}
	payload := map[string]any{
		"event":    event,
		"entity":   entity,
		"metadata": metadata,
		"ts":       time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.post(ctx, "/api/v1/audit", payload); err != nil && c.Logger != nil {
		c.Logger.Warn("audit record failed",
			zap.String("event", event),
			zap.String("entity", entity),
			zap.Error(err),
		)
	}
}

func (c *Client) Notify(ctx context.Context, userID string, kind NotificationKind, payload map[string]any) {
	if c == nil || c.BaseURL == "" {
		return
	}
	body := map[string]any{
		"user_id": userID,
		"kind":    string(kind),
		"payload": payload,
	}
	if err := c.post(ctx, "/api/v1/notifications", body); err != nil && c.Logger != nil {
		c.Logger.Warn("notification failed",
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("sidecar http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
