package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"spendsnap/internal/domain"
	"spendsnap/internal/logger"
)

// Expense event types. They double as routing keys.
const (
	EventExpenseCreated = "expense.created"
	EventExpenseUpdated = "expense.updated"
	EventExpenseDeleted = "expense.deleted"
)

// ExpenseEvent describes a change to one expense.
type ExpenseEvent struct {
	Type       string          `json:"type"`
	ExpenseID  string          `json:"expenseId"`
	UserID     string          `json:"userId"`
	Expense    *domain.Expense `json:"expense,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// NewExpenseEvent builds an event for e. Deletions carry no snapshot.
func NewExpenseEvent(eventType string, e domain.Expense) ExpenseEvent {
	ev := ExpenseEvent{
		Type:       eventType,
		ExpenseID:  e.ID,
		UserID:     e.UserID,
		OccurredAt: time.Now().UTC(),
	}
	if eventType != EventExpenseDeleted {
		snapshot := e.Clone()
		ev.Expense = &snapshot
	}
	return ev
}

// amqpChannel is the part of *amqp091.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// amqpPublisher publishes expense events to a topic exchange.
type amqpPublisher struct {
	conn     *amqp091.Connection
	channel  amqpChannel
	exchange string
	timeout  time.Duration
	log      *zap.SugaredLogger
}

// NewAMQPPublisher dials url and declares a durable topic exchange.
func NewAMQPPublisher(url, exchange string) (EventPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	p := newChannelPublisher(channel, exchange)
	p.conn = conn
	return p, nil
}

func newChannelPublisher(channel amqpChannel, exchange string) *amqpPublisher {
	return &amqpPublisher{
		channel:  channel,
		exchange: exchange,
		timeout:  5 * time.Second,
		log:      logger.Named("events"),
	}
}

// Publish sends event as a persistent JSON message routed by its type.
func (p *amqpPublisher) Publish(ctx context.Context, event ExpenseEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange, // exchange
		event.Type, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.ExpenseID,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	p.log.Debugw("published expense event", "type", event.Type, "expense_id", event.ExpenseID)
	return nil
}

// Close closes the channel and then the connection.
func (p *amqpPublisher) Close() error {
	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// noopPublisher drops every event. It is used when no broker is configured.
type noopPublisher struct{}

// NewNoopPublisher returns a publisher that does nothing.
func NewNoopPublisher() EventPublisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, ExpenseEvent) error { return nil }
func (noopPublisher) Close() error                                { return nil }
