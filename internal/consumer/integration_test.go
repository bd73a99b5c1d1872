//go:build integration

package consumer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"darkgravity/internal/domain"
	"darkgravity/internal/publisher"
)

type ConsumerIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *ConsumerIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *ConsumerIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestConsumerIntegrationSuite(t *testing.T) {
	suite.Run(t, new(ConsumerIntegrationSuite))
}

func (s *ConsumerIntegrationSuite) topology(suffix string) (publisher.Config, Config) {
	pubCfg := publisher.Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-" + suffix,
		RoutingKey: "test-routing-key-" + suffix,
		QueueName:  "test-queue-" + suffix,
	}
	conCfg := Config{
		URL:           s.amqpURL,
		Exchange:      pubCfg.Exchange,
		RoutingKey:    pubCfg.RoutingKey,
		QueueName:     pubCfg.QueueName,
		MaxRetries:    3,
		RetryInterval: 50 * time.Millisecond,
	}
	return pubCfg, conCfg
}

func (s *ConsumerIntegrationSuite) TestRoundtripDeliversEvent() {
	pubCfg, conCfg := s.topology("roundtrip")

	pub, err := publisher.NewRabbitMQ(pubCfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	con, err := NewRabbitMQ(conCfg, s.logger)
	s.Require().NoError(err)
	defer con.Close()

	story := &domain.Story{
		ID:       uuid.New(),
		Title:    "The Basement Door",
		BodyText: "The door was open again this morning.",
	}
	s.Require().NoError(pub.Publish(s.ctx, story))

	received := make(chan domain.StoryFetched, 1)
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	go func() {
		_ = con.Consume(ctx, func(_ context.Context, event domain.StoryFetched) error {
			received <- event
			return nil
		})
	}()

	select {
	case event := <-received:
		s.Equal(story.ID, event.StoryID)
		s.Equal("The Basement Door", event.Title)
	case <-time.After(10 * time.Second):
		s.Fail("Timeout waiting for event")
	}
}

func (s *ConsumerIntegrationSuite) TestHandlerRetriedUntilSuccess() {
	pubCfg, conCfg := s.topology("retry")

	pub, err := publisher.NewRabbitMQ(pubCfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	con, err := NewRabbitMQ(conCfg, s.logger)
	s.Require().NoError(err)
	defer con.Close()

	s.Require().NoError(pub.Publish(s.ctx, &domain.Story{ID: uuid.New(), Title: "Flaky"}))

	var attempts atomic.Int32
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	go func() {
		_ = con.Consume(ctx, func(_ context.Context, _ domain.StoryFetched) error {
			if attempts.Add(1) < 3 {
				return errors.New("transient failure")
			}
			close(done)
			return nil
		})
	}()

	select {
	case <-done:
		s.Equal(int32(3), attempts.Load())
	case <-time.After(10 * time.Second):
		s.Fail("Timeout waiting for retries")
	}
}

func (s *ConsumerIntegrationSuite) TestExhaustedRetriesDropMessage() {
	pubCfg, conCfg := s.topology("drop")

	pub, err := publisher.NewRabbitMQ(pubCfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	con, err := NewRabbitMQ(conCfg, s.logger)
	s.Require().NoError(err)
	defer con.Close()

	s.Require().NoError(pub.Publish(s.ctx, &domain.Story{ID: uuid.New(), Title: "Poisoned"}))

	var attempts atomic.Int32
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	go func() {
		_ = con.Consume(ctx, func(_ context.Context, _ domain.StoryFetched) error {
			attempts.Add(1)
			return errors.New("permanent failure")
		})
	}()

	// maxRetries attempts, then a Nack without requeue; no redelivery follows
	s.Eventually(func() bool {
		return attempts.Load() == int32(conCfg.MaxRetries)
	}, 10*time.Second, 100*time.Millisecond)

	time.Sleep(500 * time.Millisecond)
	s.Equal(int32(conCfg.MaxRetries), attempts.Load())
}
