package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ajitpratap0/brain-access/internal/metrics"
	"github.com/ajitpratap0/brain-access/internal/models"
	"github.com/ajitpratap0/brain-access/internal/notify"
	"github.com/ajitpratap0/brain-access/internal/store"
)

// maxPendingScan bounds one reminder pass.
const maxPendingScan = 1000

// Report summarizes the results of a maintenance run.
type Report struct {
	PrunedPeriods int `json:"pruned_periods"`
	StaleRequests int `json:"stale_requests"`
	Reminded      int `json:"reminded"`
}

// Manager runs periodic maintenance: it drops upload counters for periods
// past retention and reminds approvers about requests pending longer than
// the estimated turnaround.
type Manager struct {
	store      store.Store
	notifier   notify.Notifier
	retention  time.Duration
	turnaround time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewManager creates a maintenance manager. A nil notifier disables
// reminders.
func NewManager(st store.Store, n notify.Notifier, turnaround time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		store:      st,
		notifier:   n,
		retention:  store.UploadRetention,
		turnaround: turnaround,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Run executes all maintenance operations. Failures in one step are logged
// and do not stop the next.
func (m *Manager) Run(ctx context.Context, dryRun bool) (*Report, error) {
	report := &Report{}

	// 1. Upload counter retention
	pruned, err := m.pruneUploads(ctx, dryRun)
	if err != nil {
		m.logger.Error("upload counter pruning failed", "error", err)
	}
	report.PrunedPeriods = pruned

	// 2. Stale request reminders
	stale, reminded, err := m.remindStale(ctx, dryRun)
	if err != nil {
		m.logger.Error("stale request scan failed", "error", err)
	}
	report.StaleRequests = stale
	report.Reminded = reminded

	return report, nil
}

func (m *Manager) pruneUploads(ctx context.Context, dryRun bool) (int, error) {
	cutoff := m.now().Add(-m.retention)
	n, err := m.store.PruneUploadCounts(ctx, cutoff, dryRun)
	if err != nil {
		return 0, fmt.Errorf("pruning upload counters before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		m.logger.Info("pruned upload counters", "count", n, "before", cutoff, "dry_run", dryRun)
		if !dryRun {
			metrics.UploadPeriodsPruned.Add(int64(n))
		}
	}
	return n, nil
}

// remindStale re-sends approval requests for records that have been
// pending longer than the turnaround estimate.
func (m *Manager) remindStale(ctx context.Context, dryRun bool) (int, int, error) {
	pending, err := m.store.ListBrainAccess(ctx, models.BrainAccessRequested, maxPendingScan)
	if err != nil {
		return 0, 0, fmt.Errorf("listing pending requests: %w", err)
	}

	now := m.now()
	stale, reminded := 0, 0
	for _, rec := range pending {
		if rec.RequestedAt.IsZero() || now.Sub(rec.RequestedAt) <= m.turnaround {
			continue
		}
		stale++
		m.logger.Info("brain access request pending past turnaround",
			"user_id", rec.UserID, "request_id", rec.RequestID, "requested_at", rec.RequestedAt)
		if dryRun || m.notifier == nil {
			continue
		}
		err := m.notifier.NotifyApprovers(ctx, notify.ApprovalRequest{
			RequestID:   rec.RequestID,
			UserID:      rec.UserID,
			Requester:   rec.Requester,
			RequestedAt: rec.RequestedAt,
		})
		if err != nil {
			metrics.Inc(metrics.NotifyFailures)
			m.logger.Error("reminding approvers", "user_id", rec.UserID, "error", err)
			continue
		}
		metrics.Inc(metrics.RemindersSent)
		reminded++
	}
	return stale, reminded, nil
}
