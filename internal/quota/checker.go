package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ajitpratap0/brain-access/internal/metrics"
	"github.com/ajitpratap0/brain-access/internal/models"
	"github.com/ajitpratap0/brain-access/internal/store"
)

// ErrQuotaExceeded is returned by Record when the user has no uploads left.
var ErrQuotaExceeded = errors.New("upload quota exceeded")

// ReadFailurePolicy decides what an unreadable upload count means.
type ReadFailurePolicy string

const (
	// FailClosed treats an unreadable count as an exhausted quota.
	FailClosed ReadFailurePolicy = "fail_closed"
	// FailOpen treats an unreadable count as zero uploads.
	FailOpen ReadFailurePolicy = "fail_open"
)

// ParseReadFailurePolicy validates a configured policy name.
func ParseReadFailurePolicy(s string) (ReadFailurePolicy, error) {
	switch p := ReadFailurePolicy(s); p {
	case FailClosed, FailOpen:
		return p, nil
	default:
		return "", fmt.Errorf("invalid read failure policy %q: must be %s or %s", s, FailClosed, FailOpen)
	}
}

// Decision is the outcome of a quota check for one user.
type Decision struct {
	UserID      string       `json:"user_id"`
	Plan        models.Plan  `json:"plan"`
	Used        int          `json:"used"`
	Limit       models.Limit `json:"limit"`
	Remaining   models.Limit `json:"remaining"`
	Allowed     bool         `json:"allowed"`
	PeriodStart time.Time    `json:"period_start"`
	// Degraded is set when persisted state could not be read and the
	// decision came from a fallback.
	Degraded bool `json:"degraded"`
	// Recorded is set by Record once the upload has been counted.
	Recorded bool `json:"recorded"`
}

// Checker binds the Tracker to persisted plan and upload counts.
type Checker struct {
	users   store.UserStore
	counter store.UploadCounter
	tracker Tracker
	policy  ReadFailurePolicy
	logger  *slog.Logger
	now     func() time.Time
}

// NewChecker creates a Checker. An empty policy means FailClosed.
func NewChecker(users store.UserStore, counter store.UploadCounter, policy ReadFailurePolicy, logger *slog.Logger) *Checker {
	if policy == "" {
		policy = FailClosed
	}
	return &Checker{
		users:   users,
		counter: counter,
		tracker: NewTracker(),
		policy:  policy,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (c *Checker) WithClock(now func() time.Time) *Checker {
	c.now = now
	return c
}

// Check reads fresh state and decides whether the user may upload. On a
// read failure it still returns a usable Decision, chosen by the plan
// fallback and the read failure policy, together with a
// *store.PersistenceError.
func (c *Checker) Check(ctx context.Context, userID string) (*Decision, error) {
	var readErrs []error

	plan, err := store.PlanOrFree(ctx, c.users, userID)
	if err != nil {
		c.logger.Warn("quota: plan read failed, using free plan", "user_id", userID, "error", err)
		readErrs = append(readErrs, err)
	}

	limit := c.tracker.Limit(string(plan))
	start := PeriodStart(c.tracker.UploadPeriod(string(plan)), c.now())

	used, err := c.counter.ReadUploadCount(ctx, userID, start)
	if err != nil {
		metrics.Inc(metrics.QuotaReadFailures)
		readErrs = append(readErrs, &store.PersistenceError{Op: "read upload count", UserID: userID, Err: err})
		switch {
		case limit.Unlimited:
			used = 0
		case c.policy == FailOpen:
			c.logger.Warn("quota: upload count read failed, failing open", "user_id", userID, "error", err)
			used = 0
		default:
			c.logger.Warn("quota: upload count read failed, failing closed", "user_id", userID, "error", err)
			used = limit.Value
		}
	}

	d := &Decision{
		UserID:      userID,
		Plan:        plan,
		Used:        used,
		Limit:       limit,
		Remaining:   limit.Minus(used),
		Allowed:     limit.Allows(used),
		PeriodStart: start,
		Degraded:    len(readErrs) > 0,
	}
	if d.Allowed {
		metrics.Inc(metrics.UploadsAllowed)
	} else {
		metrics.Inc(metrics.UploadsBlocked)
	}
	return d, errors.Join(readErrs...)
}

// Record checks the quota and, if an upload is permitted, counts one. The
// counter enforces the limit atomically, so concurrent callers cannot push
// the count past it. It refuses with ErrQuotaExceeded when no uploads
// remain.
func (c *Checker) Record(ctx context.Context, userID string) (*Decision, error) {
	d, err := c.Check(ctx, userID)
	if !d.Allowed {
		if err != nil {
			return d, err
		}
		return d, ErrQuotaExceeded
	}

	capacity := store.NoLimit
	if !d.Limit.Unlimited {
		capacity = d.Limit.Value
	}
	n, counted, incErr := c.counter.IncrementUploadCount(ctx, userID, d.PeriodStart, capacity)
	if incErr != nil {
		return d, errors.Join(err, &store.PersistenceError{Op: "increment upload count", UserID: userID, Err: incErr})
	}
	d.Used = n
	d.Remaining = d.Limit.Minus(n)
	if !counted {
		d.Allowed = false
		metrics.Inc(metrics.UploadsBlocked)
		c.logger.Debug("quota: upload refused at increment", "user_id", userID, "used", n, "limit", d.Limit.String())
		return d, errors.Join(err, ErrQuotaExceeded)
	}
	d.Recorded = true
	c.logger.Debug("quota: upload recorded", "user_id", userID, "used", n, "limit", d.Limit.String())
	return d, err
}
