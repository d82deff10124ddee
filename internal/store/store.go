package store

import (
	"context"
	"errors"
	"time"

	"github.com/ajitpratap0/brain-access/internal/models"
)

// ErrNotFound is returned by GetUser when the user has no stored record.
var ErrNotFound = errors.New("user not found")

// ErrConflict is returned by WriteBrainAccess when the stored status does
// not match the expected status.
var ErrConflict = errors.New("brain access status changed concurrently")

// UserStore reads and writes a user's plan.
type UserStore interface {
	// ReadUserPlan returns the user's plan. Users without a record are on
	// the free plan; I/O failures are returned to the caller.
	ReadUserPlan(ctx context.Context, userID string) (models.Plan, error)

	// SetUserPlan records the user's plan, creating the record if needed.
	SetUserPlan(ctx context.Context, userID string, plan models.Plan) error

	// GetUser returns the full persisted record.
	GetUser(ctx context.Context, userID string) (*models.UserRecord, error)
}

// NoLimit disables the cap passed to IncrementUploadCount.
const NoLimit = -1

// UploadCounter tracks uploads per user per quota period. The period
// argument is the start of the quota window.
type UploadCounter interface {
	// ReadUploadCount returns uploads consumed in the period (0 if none).
	ReadUploadCount(ctx context.Context, userID string, period time.Time) (int, error)

	// IncrementUploadCount adds one upload unless the period already holds
	// limit uploads. It returns the resulting count and whether the upload
	// was counted. The comparison and the increment are one atomic step;
	// NoLimit disables the cap.
	IncrementUploadCount(ctx context.Context, userID string, period time.Time, limit int) (int, bool, error)
}

// BrainAccessStore persists Brain provisioning state.
type BrainAccessStore interface {
	// ReadBrainAccess returns the user's record; users who never requested
	// get a record with status none and a nil error.
	ReadBrainAccess(ctx context.Context, userID string) (*models.BrainAccessRequest, error)

	// WriteBrainAccess atomically replaces the user's record if its current
	// status equals expected, otherwise it returns ErrConflict. This is the
	// per-user serialization point for workflow transitions.
	WriteBrainAccess(ctx context.Context, userID string, expected models.BrainAccessStatus, next models.BrainAccessRequest) error
}

// Maintainer exposes the bulk queries used by periodic maintenance.
type Maintainer interface {
	// ListBrainAccess returns up to limit records in the given status,
	// oldest request first.
	ListBrainAccess(ctx context.Context, status models.BrainAccessStatus, limit int) ([]models.BrainAccessRequest, error)

	// PruneUploadCounts deletes upload counters for periods that started
	// before the cutoff and returns how many there were. With dryRun set
	// nothing is deleted.
	PruneUploadCounts(ctx context.Context, before time.Time, dryRun bool) (int, error)
}

// Store is the full persistence collaborator.
type Store interface {
	UserStore
	UploadCounter
	BrainAccessStore
	Maintainer

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}
