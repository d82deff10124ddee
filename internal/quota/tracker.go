// Package quota decides whether a user may upload more content in the
// current period.
package quota

import (
	"time"

	"github.com/ajitpratap0/brain-access/internal/catalog"
	"github.com/ajitpratap0/brain-access/internal/models"
)

// Tracker is a pure predicate over a plan and an externally supplied count.
// It never mutates state.
type Tracker struct{}

// NewTracker returns a Tracker.
func NewTracker() Tracker { return Tracker{} }

// Limit returns the plan's upload quota. Unknown plans have zero quota.
func (Tracker) Limit(plan string) models.Limit {
	p, ok := catalog.ParsePlan(plan)
	if !ok {
		return models.Finite(0)
	}
	info, _ := catalog.Plan(p)
	return info.UploadQuota
}

// QueryLimit returns the plan's query quota. Unknown plans have zero quota.
func (Tracker) QueryLimit(plan string) models.Limit {
	p, ok := catalog.ParsePlan(plan)
	if !ok {
		return models.Finite(0)
	}
	info, _ := catalog.Plan(p)
	return info.QueryQuota
}

// CanUpload reports whether one more upload is permitted.
func (t Tracker) CanUpload(plan string, currentUploads int) bool {
	return t.Limit(plan).Allows(currentUploads)
}

// Remaining returns the uploads left, clamped at zero, or unlimited.
func (t Tracker) Remaining(plan string, currentUploads int) models.Limit {
	return t.Limit(plan).Minus(currentUploads)
}

// UploadPeriod returns the reset period for the plan's upload quota.
// Unknown plans use the free plan's period.
func (Tracker) UploadPeriod(plan string) models.ResetPeriod {
	p, ok := catalog.ParsePlan(plan)
	if !ok {
		p = models.PlanFree
	}
	info, _ := catalog.Plan(p)
	return info.UploadPeriod
}

// PeriodStart returns the start of the quota window containing now, in UTC.
func PeriodStart(period models.ResetPeriod, now time.Time) time.Time {
	now = now.UTC()
	switch period {
	case models.PeriodDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}
