// Package metrics provides application-level counters using stdlib expvar.
// Counters are exported on the /debug/vars HTTP endpoint by the serve command.
package metrics

import "expvar"

// Decision counters.
var (
	EntitlementChecks = expvar.NewInt("brain_entitlement_checks_total")
	AccessDenied      = expvar.NewInt("brain_access_denied_total")
	SharingRejected   = expvar.NewInt("brain_sharing_rejected_total")
	UploadsAllowed    = expvar.NewInt("brain_uploads_allowed_total")
	UploadsBlocked    = expvar.NewInt("brain_uploads_blocked_total")
	QuotaReadFailures = expvar.NewInt("brain_quota_read_failures_total")
)

// Brain access workflow counters.
var (
	BrainAccessRequested = expvar.NewInt("brain_access_requests_total")
	BrainAccessApproved  = expvar.NewInt("brain_access_approvals_total")
	BrainAccessRejected  = expvar.NewInt("brain_access_rejections_total")
	NotifyFailures       = expvar.NewInt("brain_notify_failures_total")
)

// Maintenance counters.
var (
	UploadPeriodsPruned = expvar.NewInt("brain_upload_periods_pruned_total")
	RemindersSent       = expvar.NewInt("brain_access_reminders_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
