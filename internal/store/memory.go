package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ajitpratap0/brain-access/internal/models"
)

// MemoryStore is an in-memory implementation of Store. It backs tests and
// the memory backend for local development.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*storedUser
	uploads map[uploadKey]int
}

type storedUser struct {
	plan        models.Plan
	brainAccess models.BrainAccessRequest
}

type uploadKey struct {
	userID string
	period int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*storedUser),
		uploads: make(map[uploadKey]int),
	}
}

// Ping always succeeds.
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// ReadUserPlan returns the stored plan, or free for unknown users.
func (m *MemoryStore) ReadUserPlan(_ context.Context, userID string) (models.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok || u.plan == "" {
		return models.PlanFree, nil
	}
	return u.plan, nil
}

// SetUserPlan records the user's plan.
func (m *MemoryStore) SetUserPlan(_ context.Context, userID string, plan models.Plan) error {
	if !plan.IsValid() {
		return fmt.Errorf("set plan: invalid plan %q", plan)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userLocked(userID).plan = plan
	return nil
}

// GetUser returns the user's record with the upload count of the latest
// period recorded for them.
func (m *MemoryStore) GetUser(_ context.Context, userID string) (*models.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	rec := &models.UserRecord{
		UserID:      userID,
		Plan:        u.plan,
		BrainAccess: u.brainAccess,
	}
	if rec.Plan == "" {
		rec.Plan = models.PlanFree
	}
	var latest int64
	found := false
	for k, n := range m.uploads {
		if k.userID == userID && (!found || k.period > latest) {
			latest = k.period
			rec.UploadsThisPeriod = n
			found = true
		}
	}
	if found {
		rec.PeriodStart = time.Unix(latest, 0).UTC()
	}
	return rec, nil
}

// ReadUploadCount returns the uploads consumed in the period.
func (m *MemoryStore) ReadUploadCount(_ context.Context, userID string, period time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uploads[uploadKey{userID: userID, period: period.Unix()}], nil
}

// IncrementUploadCount adds one upload to the period's counter if it is
// below limit.
func (m *MemoryStore) IncrementUploadCount(_ context.Context, userID string, period time.Time, limit int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := uploadKey{userID: userID, period: period.Unix()}
	if limit >= 0 && m.uploads[k] >= limit {
		return m.uploads[k], false, nil
	}
	m.uploads[k]++
	return m.uploads[k], true, nil
}

// ReadBrainAccess returns the user's provisioning record.
func (m *MemoryStore) ReadBrainAccess(_ context.Context, userID string) (*models.BrainAccessRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok || u.brainAccess.Status == "" {
		rec := models.NoBrainAccess(userID)
		return &rec, nil
	}
	rec := u.brainAccess
	return &rec, nil
}

// WriteBrainAccess replaces the record if the stored status equals expected.
func (m *MemoryStore) WriteBrainAccess(_ context.Context, userID string, expected models.BrainAccessStatus, next models.BrainAccessRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.userLocked(userID)
	current := u.brainAccess.Status
	if current == "" {
		current = models.BrainAccessNone
	}
	if current != expected {
		return fmt.Errorf("%w: expected %s, found %s", ErrConflict, expected, current)
	}
	next.UserID = userID
	u.brainAccess = next
	return nil
}

// ListBrainAccess returns records in the status, oldest request first.
func (m *MemoryStore) ListBrainAccess(_ context.Context, status models.BrainAccessStatus, limit int) ([]models.BrainAccessRequest, error) {
	m.mu.RLock()
	var out []models.BrainAccessRequest
	for _, u := range m.users {
		if u.brainAccess.Status == status {
			out = append(out, u.brainAccess)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PruneUploadCounts drops counters for periods before the cutoff.
func (m *MemoryStore) PruneUploadCounts(_ context.Context, before time.Time, dryRun bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := before.Unix()
	n := 0
	for k := range m.uploads {
		if k.period < cutoff {
			n++
			if !dryRun {
				delete(m.uploads, k)
			}
		}
	}
	return n, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// userLocked returns the user's record, creating it. Caller holds m.mu.
func (m *MemoryStore) userLocked(userID string) *storedUser {
	u, ok := m.users[userID]
	if !ok {
		u = &storedUser{plan: models.PlanFree}
		m.users[userID] = u
	}
	return u
}
