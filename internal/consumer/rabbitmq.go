package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"darkgravity/internal/domain"
)

// Handler processes one StoryFetched delivery. A returned error triggers the
// consumer's retry policy.
type Handler func(ctx context.Context, event domain.StoryFetched) error

type Config struct {
	URL           string
	Exchange      string
	RoutingKey    string
	QueueName     string
	MaxRetries    int
	RetryInterval time.Duration
}

// RabbitMQ consumes StoryFetched events with manual acks. Failed deliveries
// are retried in place a few times before being dropped from the queue;
// anything lost that way is recovered later by the repair sweep.
type RabbitMQ struct {
	conn          *amqp.Connection
	channel       *amqp.Channel
	queue         string
	maxRetries    int
	retryInterval time.Duration
	logger        *slog.Logger
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// Same topology as the publisher so either side can start first.
	err = ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	// One unacked message at a time: analysis is deliberately sequential.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	logger.Info("consumer connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
	)

	return &RabbitMQ{
		conn:          conn,
		channel:       ch,
		queue:         q.Name,
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInterval,
		logger:        logger,
	}, nil
}

// Consume blocks until the context is cancelled or the channel closes.
func (c *RabbitMQ) Consume(ctx context.Context, handler Handler) error {
	deliveries, err := c.channel.ConsumeWithContext(
		ctx,
		c.queue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.Info("consuming", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, delivery, handler)
		}
	}
}

func (c *RabbitMQ) handle(ctx context.Context, delivery amqp.Delivery, handler Handler) {
	var event domain.StoryFetched
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		c.logger.Error("malformed message, dropping", "error", err)
		_ = delivery.Nack(false, false)
		return
	}

	var err error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		err = handler(ctx, event)
		if err == nil {
			_ = delivery.Ack(false)
			return
		}

		c.logger.Warn("handler failed",
			"story_id", event.StoryID,
			"attempt", attempt,
			"max_retries", c.maxRetries,
			"error", err,
		)

		if attempt == c.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			// requeue so the message survives shutdown
			_ = delivery.Nack(false, true)
			return
		case <-time.After(c.retryInterval):
		}
	}

	c.logger.Error("handler exhausted retries, dropping message",
		"story_id", event.StoryID,
		"error", err,
	)
	_ = delivery.Nack(false, false)
}

func (c *RabbitMQ) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
