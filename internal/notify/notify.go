// Package notify delivers Brain access workflow events to approvers and
// users. Delivery is best effort: the workflow never rolls back a state
// change because a notification failed.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/ajitpratap0/brain-access/internal/metrics"
	"github.com/ajitpratap0/brain-access/internal/models"
)

// Event names a user-facing notification.
type Event string

const (
	EventBrainAccessApproved Event = "brain_access.approved"
	EventBrainAccessRejected Event = "brain_access.rejected"
)

// ApprovalRequest is what approvers receive when a user asks for a Brain.
type ApprovalRequest struct {
	RequestID   string               `json:"request_id"`
	UserID      string               `json:"user_id"`
	Requester   models.RequesterInfo `json:"requester"`
	RequestedAt time.Time            `json:"requested_at"`
}

// Notifier is the delivery channel for workflow events.
type Notifier interface {
	NotifyApprovers(ctx context.Context, req ApprovalRequest) error
	NotifyUser(ctx context.Context, userID string, event Event, payload map[string]any) error
}

// LogNotifier writes notifications to the log only.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyApprovers logs the approval request.
func (n *LogNotifier) NotifyApprovers(_ context.Context, req ApprovalRequest) error {
	n.logger.Info("notify: brain access requested",
		"request_id", req.RequestID,
		"user_id", req.UserID,
		"email", req.Requester.Email,
		"organization", req.Requester.Organization,
	)
	return nil
}

// NotifyUser logs the user event.
func (n *LogNotifier) NotifyUser(_ context.Context, userID string, event Event, payload map[string]any) error {
	n.logger.Info("notify: user event", "user_id", userID, "event", string(event), "payload", payload)
	return nil
}

// defaultSendTimeout bounds a detached send.
const defaultSendTimeout = 10 * time.Second

// FireAndForget runs send in the background, detached from ctx's
// cancellation but keeping its values. Failures are logged and counted.
// The returned channel is closed once send has finished.
func FireAndForget(ctx context.Context, logger *slog.Logger, what string, send func(context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultSendTimeout)
	go func() {
		defer close(done)
		defer cancel()
		if err := send(bg); err != nil {
			metrics.Inc(metrics.NotifyFailures)
			logger.Warn("notify: delivery failed", "what", what, "error", err)
		}
	}()
	return done
}
