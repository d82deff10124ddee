package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/brain-access/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakePublisher struct {
	mu     sync.Mutex
	msgs   []published
	closed bool
	err    error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakePublisher) IsClosed() bool { return f.closed }

func TestAMQPNotifier_NotifyApprovers(t *testing.T) {
	pub := &fakePublisher{}
	n := NewAMQPNotifierFromPublisher(pub, testLogger())

	req := ApprovalRequest{
		RequestID:   "req-1",
		UserID:      "u1",
		Requester:   models.RequesterInfo{Name: "Ada", Email: "ada@example.com"},
		RequestedAt: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, n.NotifyApprovers(context.Background(), req))

	require.Len(t, pub.msgs, 1)
	got := pub.msgs[0]
	assert.Equal(t, ExchangeName, got.exchange)
	assert.Equal(t, RoutingKeyApprovers, got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.NotEmpty(t, got.msg.MessageId)

	var env struct {
		Type    string          `json:"type"`
		UserID  string          `json:"user_id"`
		Payload ApprovalRequest `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(got.msg.Body, &env))
	assert.Equal(t, "brain_access.requested", env.Type)
	assert.Equal(t, "u1", env.UserID)
	assert.Equal(t, "ada@example.com", env.Payload.Requester.Email)
}

func TestAMQPNotifier_NotifyUser(t *testing.T) {
	pub := &fakePublisher{}
	n := NewAMQPNotifierFromPublisher(pub, testLogger())

	err := n.NotifyUser(context.Background(), "u2", EventBrainAccessRejected, map[string]any{"reason": "no seat"})
	require.NoError(t, err)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, RoutingKeyUser, pub.msgs[0].key)
	assert.Equal(t, string(EventBrainAccessRejected), pub.msgs[0].msg.Type)
}

func TestAMQPNotifier_ClosedChannel(t *testing.T) {
	n := NewAMQPNotifierFromPublisher(&fakePublisher{closed: true}, testLogger())
	err := n.NotifyUser(context.Background(), "u1", EventBrainAccessApproved, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestAMQPNotifier_PublishError(t *testing.T) {
	boom := errors.New("channel flow paused")
	n := NewAMQPNotifierFromPublisher(&fakePublisher{err: boom}, testLogger())
	err := n.NotifyApprovers(context.Background(), ApprovalRequest{UserID: "u1"})
	assert.ErrorIs(t, err, boom)
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(testLogger())
	assert.NoError(t, n.NotifyApprovers(context.Background(), ApprovalRequest{UserID: "u1"}))
	assert.NoError(t, n.NotifyUser(context.Background(), "u1", EventBrainAccessApproved, nil))
}

func TestFireAndForget_SurvivesCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var sawErr error
	done := FireAndForget(ctx, testLogger(), "test", func(c context.Context) error {
		cancel()
		sawErr = c.Err()
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send did not finish")
	}
	assert.NoError(t, sawErr)
}

func TestFireAndForget_SwallowsError(t *testing.T) {
	done := FireAndForget(context.Background(), testLogger(), "test", func(context.Context) error {
		return errors.New("smtp down")
	})
	<-done
}
