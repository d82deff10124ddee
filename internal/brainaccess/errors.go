package brainaccess

import (
	"errors"
	"fmt"
	"time"

	"github.com/ajitpratap0/brain-access/internal/models"
)

var (
	// ErrReasonRequired is returned by Reject when no reason is given.
	ErrReasonRequired = errors.New("rejection reason is required")
	// ErrApproverRequired is returned when an administrative transition has no actor.
	ErrApproverRequired = errors.New("approver id is required")
	// ErrUserIDRequired is returned for an empty user id.
	ErrUserIDRequired = errors.New("user id is required")
)

// AlreadyRequestedError is returned by RequestAccess when the user already
// has a request on record.
type AlreadyRequestedError struct {
	UserID      string
	Status      models.BrainAccessStatus
	RequestedAt time.Time
}

func (e *AlreadyRequestedError) Error() string {
	return fmt.Sprintf("brain access already %s for user %s", e.Status, e.UserID)
}

// InvalidTransitionError is returned when an administrative transition is
// not defined from the user's current status.
type InvalidTransitionError struct {
	UserID string
	From   models.BrainAccessStatus
	To     models.BrainAccessStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move brain access for user %s from %s to %s", e.UserID, e.From, e.To)
}
