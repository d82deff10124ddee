// Package brainaccess tracks whether a user has requested, been approved
// for, or been rejected for Brain storage provisioning.
//
// States move none -> requested -> approved | rejected. Approved is final.
// Rejected is final unless Policy.AllowReRequestAfterRejection is set.
package brainaccess

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/brain-access/internal/metrics"
	"github.com/ajitpratap0/brain-access/internal/models"
	"github.com/ajitpratap0/brain-access/internal/notify"
	"github.com/ajitpratap0/brain-access/internal/store"
)

// DefaultTurnaround is the informational approval estimate.
const DefaultTurnaround = 48 * time.Hour

// Policy holds the workflow's configurable rules.
type Policy struct {
	// AllowReRequestAfterRejection lets a rejected user request again.
	AllowReRequestAfterRejection bool
	// EstimatedTurnaround is reported to requesters. It is not a deadline.
	EstimatedTurnaround time.Duration
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{EstimatedTurnaround: DefaultTurnaround}
}

// RequestResult is returned by a successful RequestAccess.
type RequestResult struct {
	Request             models.BrainAccessRequest `json:"request"`
	EstimatedTurnaround time.Duration             `json:"-"`
	EstimatedHours      float64                   `json:"estimated_turnaround_hours"`
	EstimatedBy         time.Time                 `json:"estimated_by"`
}

// Workflow runs Brain access transitions against a BrainAccessStore. The
// store's compare-and-swap write is the only serialization point, so a
// Workflow is safe for concurrent use across processes.
type Workflow struct {
	store    store.BrainAccessStore
	notifier notify.Notifier
	policy   Policy
	logger   *slog.Logger
	now      func() time.Time

	pending sync.WaitGroup
}

// NewWorkflow creates a Workflow.
func NewWorkflow(st store.BrainAccessStore, notifier notify.Notifier, policy Policy, logger *slog.Logger) *Workflow {
	if policy.EstimatedTurnaround <= 0 {
		policy.EstimatedTurnaround = DefaultTurnaround
	}
	return &Workflow{
		store:    st,
		notifier: notifier,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.now = now
	return w
}

// Policy returns the active policy.
func (w *Workflow) Policy() Policy { return w.policy }

// GetStatus returns the user's current record. Users who never requested
// get status none. If the store cannot be read the none record is still
// returned, so the UI can offer the request flow, together with a
// *store.PersistenceError so callers can tell the two cases apart.
func (w *Workflow) GetStatus(ctx context.Context, userID string) (*models.BrainAccessRequest, error) {
	rec, err := w.store.ReadBrainAccess(ctx, userID)
	if err != nil {
		w.logger.Warn("brainaccess: status read failed", "user_id", userID, "error", err)
		fallback := models.NoBrainAccess(userID)
		return &fallback, &store.PersistenceError{Op: "read brain access", UserID: userID, Err: err}
	}
	return rec, nil
}

// RequestAccess moves the user from none to requested and notifies
// approvers. A user with any other status gets *AlreadyRequestedError and
// the stored record is left untouched. Notification failures are logged
// only.
func (w *Workflow) RequestAccess(ctx context.Context, userID string, info models.RequesterInfo) (*RequestResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	current, err := w.store.ReadBrainAccess(ctx, userID)
	if err != nil {
		return nil, &store.PersistenceError{Op: "read brain access", UserID: userID, Err: err}
	}
	if !w.canRequest(current.Status) {
		return nil, alreadyRequested(current)
	}

	now := w.now().UTC()
	next := models.BrainAccessRequest{
		UserID:      userID,
		RequestID:   uuid.New().String(),
		Status:      models.BrainAccessRequested,
		Requester:   info,
		RequestedAt: now,
	}
	if err := w.store.WriteBrainAccess(ctx, userID, current.Status, next); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, w.lostRace(ctx, userID)
		}
		return nil, &store.PersistenceError{Op: "write brain access", UserID: userID, Err: err}
	}
	metrics.Inc(metrics.BrainAccessRequested)
	w.logger.Info("brainaccess: requested", "user_id", userID, "request_id", next.RequestID, "previous", string(current.Status))

	approval := notify.ApprovalRequest{
		RequestID:   next.RequestID,
		UserID:      userID,
		Requester:   info,
		RequestedAt: now,
	}
	w.background(ctx, "approvers", func(c context.Context) error {
		return w.notifier.NotifyApprovers(c, approval)
	})

	return &RequestResult{
		Request:             next,
		EstimatedTurnaround: w.policy.EstimatedTurnaround,
		EstimatedHours:      w.policy.EstimatedTurnaround.Hours(),
		EstimatedBy:         now.Add(w.policy.EstimatedTurnaround),
	}, nil
}

func (w *Workflow) canRequest(s models.BrainAccessStatus) bool {
	switch s {
	case models.BrainAccessNone:
		return true
	case models.BrainAccessRejected:
		return w.policy.AllowReRequestAfterRejection
	default:
		return false
	}
}

// lostRace builds the error for a request whose CAS write lost to a
// concurrent writer.
func (w *Workflow) lostRace(ctx context.Context, userID string) error {
	rec, err := w.store.ReadBrainAccess(ctx, userID)
	if err != nil {
		return &AlreadyRequestedError{UserID: userID, Status: models.BrainAccessRequested}
	}
	return alreadyRequested(rec)
}

func alreadyRequested(rec *models.BrainAccessRequest) *AlreadyRequestedError {
	return &AlreadyRequestedError{UserID: rec.UserID, Status: rec.Status, RequestedAt: rec.RequestedAt}
}

// Approve moves a requested user to approved and notifies them.
func (w *Workflow) Approve(ctx context.Context, userID, approverID, notes string) (*models.BrainAccessRequest, error) {
	if strings.TrimSpace(approverID) == "" {
		return nil, ErrApproverRequired
	}
	return w.decide(ctx, userID, models.BrainAccessApproved, func(r *models.BrainAccessRequest, now time.Time) {
		r.ApprovedAt = now
		r.ApproverID = approverID
		r.Notes = notes
	})
}

// Reject moves a requested user to rejected and notifies them. A reason is
// mandatory.
func (w *Workflow) Reject(ctx context.Context, userID, approverID, reason string) (*models.BrainAccessRequest, error) {
	if strings.TrimSpace(approverID) == "" {
		return nil, ErrApproverRequired
	}
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}
	return w.decide(ctx, userID, models.BrainAccessRejected, func(r *models.BrainAccessRequest, now time.Time) {
		r.RejectedAt = now
		r.ApproverID = approverID
		r.RejectionReason = reason
	})
}

func (w *Workflow) decide(ctx context.Context, userID string, to models.BrainAccessStatus, stamp func(*models.BrainAccessRequest, time.Time)) (*models.BrainAccessRequest, error) {
	current, err := w.store.ReadBrainAccess(ctx, userID)
	if err != nil {
		return nil, &store.PersistenceError{Op: "read brain access", UserID: userID, Err: err}
	}
	if current.Status != models.BrainAccessRequested {
		return nil, &InvalidTransitionError{UserID: userID, From: current.Status, To: to}
	}

	now := w.now().UTC()
	next := *current
	next.Status = to
	stamp(&next, now)

	if err := w.store.WriteBrainAccess(ctx, userID, models.BrainAccessRequested, next); err != nil {
		if errors.Is(err, store.ErrConflict) {
			from := models.BrainAccessStatus("unknown")
			if rec, rerr := w.store.ReadBrainAccess(ctx, userID); rerr == nil {
				from = rec.Status
			}
			return nil, &InvalidTransitionError{UserID: userID, From: from, To: to}
		}
		return nil, &store.PersistenceError{Op: "write brain access", UserID: userID, Err: err}
	}

	event := notify.EventBrainAccessApproved
	payload := map[string]any{"request_id": next.RequestID, "approver_id": next.ApproverID}
	if to == models.BrainAccessRejected {
		metrics.Inc(metrics.BrainAccessRejected)
		event = notify.EventBrainAccessRejected
		payload["reason"] = next.RejectionReason
	} else {
		metrics.Inc(metrics.BrainAccessApproved)
		if next.Notes != "" {
			payload["notes"] = next.Notes
		}
	}
	w.logger.Info("brainaccess: decided", "user_id", userID, "status", string(to), "approver_id", next.ApproverID)

	w.background(ctx, string(event), func(c context.Context) error {
		return w.notifier.NotifyUser(c, userID, event, payload)
	})
	return &next, nil
}

// background runs a notification without blocking the transition.
func (w *Workflow) background(ctx context.Context, what string, send func(context.Context) error) {
	w.pending.Add(1)
	done := notify.FireAndForget(ctx, w.logger, what, send)
	go func() {
		<-done
		w.pending.Done()
	}()
}

// Wait blocks until in-flight notifications have finished.
func (w *Workflow) Wait() {
	w.pending.Wait()
}
