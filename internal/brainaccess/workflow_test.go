package brainaccess

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/brain-access/internal/models"
	"github.com/ajitpratap0/brain-access/internal/notify"
	"github.com/ajitpratap0/brain-access/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordingNotifier captures notifications and optionally fails them.
type recordingNotifier struct {
	mu        sync.Mutex
	approvals []notify.ApprovalRequest
	events    []notify.Event
	err       error
}

func (r *recordingNotifier) NotifyApprovers(_ context.Context, req notify.ApprovalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approvals = append(r.approvals, req)
	return r.err
}

func (r *recordingNotifier) NotifyUser(_ context.Context, _ string, event notify.Event, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

// brokenStore fails every read.
type brokenStore struct{ *store.MemoryStore }

func (brokenStore) ReadBrainAccess(_ context.Context, _ string) (*models.BrainAccessRequest, error) {
	return nil, errors.New("connection refused")
}

var t0 = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newWorkflow(st store.BrainAccessStore, n notify.Notifier, p Policy) *Workflow {
	now := t0
	return NewWorkflow(st, n, p, testLogger()).WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	})
}

var ada = models.RequesterInfo{Name: "Ada", Email: "ada@example.com", Organization: "Analytical"}

func TestGetStatus_NeverRequested(t *testing.T) {
	w := newWorkflow(store.NewMemoryStore(), &recordingNotifier{}, DefaultPolicy())
	rec, err := w.GetStatus(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.BrainAccessNone, rec.Status)
}

func TestGetStatus_ReadFailureIsDistinguishable(t *testing.T) {
	w := newWorkflow(brokenStore{store.NewMemoryStore()}, &recordingNotifier{}, DefaultPolicy())
	rec, err := w.GetStatus(context.Background(), "u1")

	var pe *store.PersistenceError
	require.ErrorAs(t, err, &pe)
	require.NotNil(t, rec)
	assert.Equal(t, models.BrainAccessNone, rec.Status)
}

func TestRequestAccess_Success(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	w := newWorkflow(store.NewMemoryStore(), n, Policy{EstimatedTurnaround: 24 * time.Hour})

	res, err := w.RequestAccess(ctx, "u1", ada)
	require.NoError(t, err)
	w.Wait()

	assert.Equal(t, models.BrainAccessRequested, res.Request.Status)
	assert.NotEmpty(t, res.Request.RequestID)
	assert.Equal(t, 24.0, res.EstimatedHours)
	assert.Equal(t, res.Request.RequestedAt.Add(24*time.Hour), res.EstimatedBy)

	rec, err := w.GetStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.BrainAccessRequested, rec.Status)
	assert.Equal(t, "ada@example.com", rec.Requester.Email)

	require.Len(t, n.approvals, 1)
	assert.Equal(t, res.Request.RequestID, n.approvals[0].RequestID)
}

func TestRequestAccess_TwiceKeepsFirstTimestamp(t *testing.T) {
	ctx := context.Background()
	w := newWorkflow(store.NewMemoryStore(), &recordingNotifier{}, DefaultPolicy())

	first, err := w.RequestAccess(ctx, "u1", ada)
	require.NoError(t, err)

	_, err = w.RequestAccess(ctx, "u1", ada)
	var already *AlreadyRequestedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, models.BrainAccessRequested, already.Status)

	rec, err := w.GetStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first.Request.RequestedAt, rec.RequestedAt)
	assert.Equal(t, first.Request.RequestID, rec.RequestID)
	w.Wait()
}

func TestRequestAccess_ConcurrentRecordsOneTransition(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	w := NewWorkflow(store.NewMemoryStore(), n, DefaultPolicy(), testLogger())

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		already   int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.RequestAccess(ctx, "u1", ada)
			mu.Lock()
			defer mu.Unlock()
			var are *AlreadyRequestedError
			switch {
			case err == nil:
				successes++
			case errors.As(err, &are):
				already++
			}
		}()
	}
	wg.Wait()
	w.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, already)
	assert.Len(t, n.approvals, 1)
}

func TestRequestAccess_NotifyFailureKeepsTransition(t *testing.T) {
	ctx := context.Background()
	w := newWorkflow(store.NewMemoryStore(), &recordingNotifier{err: errors.New("smtp down")}, DefaultPolicy())

	_, err := w.RequestAccess(ctx, "u1", ada)
	require.NoError(t, err)
	w.Wait()

	rec, err := w.GetStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.BrainAccessRequested, rec.Status)
}

func TestRequestAccess_ReadFailureIsPersistenceError(t *testing.T) {
	w := newWorkflow(brokenStore{store.NewMemoryStore()}, &recordingNotifier{}, DefaultPolicy())
	_, err := w.RequestAccess(context.Background(), "u1", ada)

	var pe *store.PersistenceError
	require.ErrorAs(t, err, &pe)
	var already *AlreadyRequestedError
	assert.False(t, errors.As(err, &already))
}

func TestRequestAccess_EmptyUser(t *testing.T) {
	w := newWorkflow(store.NewMemoryStore(), &recordingNotifier{}, DefaultPolicy())
	_, err := w.RequestAccess(context.Background(), " ", ada)
	assert.ErrorIs(t, err, ErrUserIDRequired)
}

func TestApprove(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	w := newWorkflow(store.NewMemoryStore(), n, DefaultPolicy())

	_, err := w.RequestAccess(ctx, "u1", ada)
	require.NoError(t, err)

	rec, err := w.Approve(ctx, "u1", "eng-7", "welcome aboard")
	require.NoError(t, err)
	w.Wait()

	assert.Equal(t, models.BrainAccessApproved, rec.Status)
	assert.Equal(t, "eng-7", rec.ApproverID)
	assert.False(t, rec.ApprovedAt.IsZero())
	assert.False(t, rec.RequestedAt.IsZero())
	assert.Equal(t, []notify.Event{notify.EventBrainAccessApproved}, n.events)

	_, err = w.Approve(ctx, "u1", "eng-7", "")
	var bad *InvalidTransitionError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, models.BrainAccessApproved, bad.From)
}

func TestApprove_WithoutRequest(t *testing.T) {
	w := newWorkflow(store.NewMemoryStore(), &recordingNotifier{}, DefaultPolicy())
	_, err := w.Approve(context.Background(), "u1", "eng-7", "")

	var bad *InvalidTransitionError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, models.BrainAccessNone, bad.From)
	assert.Equal(t, models.BrainAccessApproved, bad.To)
}

func TestApprove_RequiresApprover(t *testing.T) {
	w := newWorkflow(store.NewMemoryStore(), &recordingNotifier{}, DefaultPolicy())
	_, err := w.Approve(context.Background(), "u1", "", "")
	assert.ErrorIs(t, err, ErrApproverRequired)
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	w := newWorkflow(store.NewMemoryStore(), n, DefaultPolicy())

	_, err := w.RequestAccess(ctx, "u1", ada)
	require.NoError(t, err)

	_, err = w.Reject(ctx, "u1", "eng-7", "  ")
	require.ErrorIs(t, err, ErrReasonRequired)

	rec, err := w.Reject(ctx, "u1", "eng-7", "no capacity this quarter")
	require.NoError(t, err)
	w.Wait()

	assert.Equal(t, models.BrainAccessRejected, rec.Status)
	assert.Equal(t, "no capacity this quarter", rec.RejectionReason)
	assert.False(t, rec.RejectedAt.IsZero())
	assert.Equal(t, []notify.Event{notify.EventBrainAccessRejected}, n.events)
}

func TestRejected_IsTerminalByDefault(t *testing.T) {
	ctx := context.Background()
	w := newWorkflow(store.NewMemoryStore(), &recordingNotifier{}, DefaultPolicy())

	_, err := w.RequestAccess(ctx, "u1", ada)
	require.NoError(t, err)
	_, err = w.Reject(ctx, "u1", "eng-7", "duplicate account")
	require.NoError(t, err)

	_, err = w.RequestAccess(ctx, "u1", ada)
	var already *AlreadyRequestedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, models.BrainAccessRejected, already.Status)
	w.Wait()
}

func TestRejected_ReRequestWhenAllowed(t *testing.T) {
	ctx := context.Background()
	w := newWorkflow(store.NewMemoryStore(), &recordingNotifier{}, Policy{AllowReRequestAfterRejection: true})

	first, err := w.RequestAccess(ctx, "u1", ada)
	require.NoError(t, err)
	_, err = w.Reject(ctx, "u1", "eng-7", "missing organization")
	require.NoError(t, err)

	second, err := w.RequestAccess(ctx, "u1", ada)
	require.NoError(t, err)
	assert.NotEqual(t, first.Request.RequestID, second.Request.RequestID)
	assert.True(t, second.Request.RejectedAt.IsZero())

	_, err = w.Approve(ctx, "u1", "eng-7", "")
	require.NoError(t, err)
	_, err = w.RequestAccess(ctx, "u1", ada)
	var already *AlreadyRequestedError
	assert.ErrorAs(t, err, &already, "approved stays terminal")
	w.Wait()
}
