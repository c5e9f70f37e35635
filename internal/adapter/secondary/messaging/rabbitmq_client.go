package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/schoolpay/payment-gateway/internal/core"
	"github.com/schoolpay/payment-gateway/internal/port/output"
)

const (
	ExchangeName  = "payments"
	QueueName     = "payment_events"
	RoutingKey    = "payment.event"
	PrefetchCount = 1 // Process one message at a time per worker
)

// RabbitMQClient is a secondary adapter that implements the EventPublisher
// output port and feeds consumed events into the notification collaborator.
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
}

// NewRabbitMQClient creates a new RabbitMQ client (returns interface for ports)
func NewRabbitMQClient(amqpURL string, logger *zap.Logger) (output.EventPublisher, error) {
	return NewRabbitMQClientConcrete(amqpURL, logger)
}

// NewRabbitMQClientConcrete creates a new RabbitMQ client (returns concrete type for workers)
func NewRabbitMQClientConcrete(amqpURL string, logger *zap.Logger) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare exchange
	err = channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Declare queue
	_, err = channel.QueueDeclare(
		QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	// Bind queue to exchange
	err = channel.QueueBind(
		QueueName,
		RoutingKey,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: channel,
		logger:  logger,
	}, nil
}

// PublishEvent publishes a domain event on the payments exchange.
func (c *RabbitMQClient) PublishEvent(ctx context.Context, evt output.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = c.channel.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // Make message persistent
			Type:         string(evt.Kind),
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	c.logger.Debug("published event",
		zap.String("kind", string(evt.Kind)),
		zap.String("payment_id", evt.PaymentID.String()))
	return nil
}

// ConsumeEvents starts consuming domain events and hands each one to the
// notifier. Transient notifier errors requeue the event; permanent ones ack
// it so the queue is not poisoned.
func (c *RabbitMQClient) ConsumeEvents(ctx context.Context, notifier output.Notifier) error {
	// Set QoS to process one message at a time
	err := c.channel.Qos(
		PrefetchCount,
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		QueueName,
		"",    // consumer tag
		false, // auto-ack (we'll manually ack after processing)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("started consuming payment events")

	go func() {
		for msg := range msgs {
			var evt output.Event
			if err := json.Unmarshal(msg.Body, &evt); err != nil {
				c.logger.Error("unparseable event, dropping", zap.Error(err))
				msg.Ack(false) // malformed payloads never become parseable
				continue
			}

			if err := notifier.Notify(ctx, evt); err != nil {
				if isPermanentError(err) {
					c.logger.Error("permanent notify failure, dropping event",
						zap.String("kind", string(evt.Kind)),
						zap.Error(err))
					msg.Ack(false)
				} else {
					c.logger.Warn("transient notify failure, requeueing",
						zap.String("kind", string(evt.Kind)),
						zap.Error(err))
					msg.Nack(false, true)
				}
				continue
			}

			msg.Ack(false)
		}
	}()

	return nil
}

// Close closes the RabbitMQ connection
func (c *RabbitMQClient) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// isPermanentError reports whether retrying the notification can never
// succeed.
func isPermanentError(err error) bool {
	var verr *core.ValidationError
	return errors.As(err, &verr) || errors.Is(err, core.ErrNotFound)
}
