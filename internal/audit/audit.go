package audit

import (
	"context"
)

// Logger records structured audit events. Best-effort contract: an
// implementation logs its own failures and never propagates them; callers
// ignore the outcome.
type Logger interface {
	Record(ctx context.Context, event, entity string, metadata map[string]any)
}

// NotificationKind distinguishes the follower-facing messages the engine
// emits. A loss-limit pause must be distinguishable from a generic failure.
type NotificationKind string

const (
	NotifyCopyExecuted   NotificationKind = "copy_executed"
	NotifyCopyFailed     NotificationKind = "copy_failed"
	NotifyPositionClosed NotificationKind = "position_closed"
	NotifyLossLimitPause NotificationKind = "loss_limit_pause"
)

// Notifier delivers follower notifications on the same best-effort terms.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind NotificationKind, payload map[string]any)
}
