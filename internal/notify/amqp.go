package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName is the durable direct exchange all notifications go to.
	ExchangeName = "brain.notifications"

	RoutingKeyApprovers = "approvers"
	RoutingKeyUser      = "user"
)

// ErrNotConnected is returned when the channel is closed.
var ErrNotConnected = errors.New("amqp channel not connected")

// Publisher is the subset of *amqp.Channel used for publishing.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
}

// envelope is the JSON body of every published message.
type envelope struct {
	Type    string    `json:"type"`
	UserID  string    `json:"user_id"`
	SentAt  time.Time `json:"sent_at"`
	Payload any       `json:"payload"`
}

// AMQPNotifier publishes notifications to RabbitMQ.
type AMQPNotifier struct {
	conn   *amqp.Connection
	logger *slog.Logger

	mu  sync.Mutex
	pub Publisher
}

// NewAMQPNotifier dials url, opens a channel and declares the exchange.
func NewAMQPNotifier(url string, logger *slog.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		ExchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", ExchangeName, err)
	}
	logger.Info("notify: amqp connected", "exchange", ExchangeName)
	return &AMQPNotifier{conn: conn, logger: logger, pub: ch}, nil
}

// NewAMQPNotifierFromPublisher wraps an existing publisher. Used by tests.
func NewAMQPNotifierFromPublisher(pub Publisher, logger *slog.Logger) *AMQPNotifier {
	return &AMQPNotifier{pub: pub, logger: logger}
}

// NotifyApprovers publishes req with the approvers routing key.
func (n *AMQPNotifier) NotifyApprovers(ctx context.Context, req ApprovalRequest) error {
	return n.publish(ctx, RoutingKeyApprovers, envelope{
		Type:    "brain_access.requested",
		UserID:  req.UserID,
		SentAt:  time.Now().UTC(),
		Payload: req,
	})
}

// NotifyUser publishes event with the user routing key.
func (n *AMQPNotifier) NotifyUser(ctx context.Context, userID string, event Event, payload map[string]any) error {
	return n.publish(ctx, RoutingKeyUser, envelope{
		Type:    string(event),
		UserID:  userID,
		SentAt:  time.Now().UTC(),
		Payload: payload,
	})
}

func (n *AMQPNotifier) publish(ctx context.Context, key string, env envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding %s notification: %w", env.Type, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pub == nil || n.pub.IsClosed() {
		return ErrNotConnected
	}
	err = n.pub.PublishWithContext(ctx,
		ExchangeName, // exchange
		key,          // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    uuid.New().String(),
			Timestamp:    env.SentAt,
			Type:         env.Type,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publishing %s notification: %w", env.Type, err)
	}
	n.logger.Debug("notify: published", "type", env.Type, "routing_key", key, "user_id", env.UserID)
	return nil
}

// Close closes the channel and connection.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	var errs []error
	if ch, ok := n.pub.(*amqp.Channel); ok && !ch.IsClosed() {
		errs = append(errs, ch.Close())
	}
	if n.conn != nil && !n.conn.IsClosed() {
		errs = append(errs, n.conn.Close())
	}
	return errors.Join(errs...)
}
