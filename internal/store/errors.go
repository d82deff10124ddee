package store

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/brain-access/internal/models"
)

// PersistenceError reports that persisted state could not be read or
// written. It lets callers tell "could not determine" apart from a
// legitimately empty or default state.
type PersistenceError struct {
	Op     string
	UserID string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s for user %s: %v", e.Op, e.UserID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PlanOrFree reads the user's plan. Any read failure or unrecognised stored
// value yields the free plan; read failures are also returned as a
// *PersistenceError so the caller can log or surface them.
func PlanOrFree(ctx context.Context, users UserStore, userID string) (models.Plan, error) {
	plan, err := users.ReadUserPlan(ctx, userID)
	if err != nil {
		return models.PlanFree, &PersistenceError{Op: "read plan", UserID: userID, Err: err}
	}
	if !plan.IsValid() {
		return models.PlanFree, nil
	}
	return plan, nil
}
