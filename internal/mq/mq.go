package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/pixelvault/apiserver/config"
)

const (
	// attemptAttribute carries the 1-based delivery attempt across redeliveries.
	attemptAttribute   = "x-attempt"
	contentTypeJSON    = "application/json"
	defaultMaxAttempts = 5
)

// Message is a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
	// Attempt is 1 on first delivery.
	Attempt int
}

// Decode unmarshals the JSON payload into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// Handler processes a message. A returned error asks for redelivery.
type Handler func(ctx context.Context, msg Message) error

// Backend is implemented by each broker.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with JSON helpers.
type MQ struct {
	backend Backend
}

func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open builds the backend selected by cfg.MQ.Driver. With no driver the
// returned queue only logs what it would have published.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*MQ, error) {
	logger = logger.With().Str("component", "mq").Str("driver", cfg.MQ.Driver).Logger()
	maxAttempts := cfg.MQ.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}

	var (
		backend Backend
		err     error
	)
	switch cfg.MQ.Driver {
	case "":
		backend = NewLogBackend(logger)
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ, maxAttempts, logger)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub, maxAttempts, logger)
	default:
		return nil, fmt.Errorf("unknown mq driver %q", cfg.MQ.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.MQ.Driver, err)
	}
	return New(backend), nil
}

// PublishJSON marshals v and publishes it on channel.
func (m *MQ) PublishJSON(ctx context.Context, channel string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s message: %w", channel, err)
	}
	return m.backend.Publish(ctx, channel, data, map[string]string{"content-type": contentTypeJSON})
}

// Subscribe blocks consuming messages from channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

func (m *MQ) Close() error {
	return m.backend.Close()
}

// attemptOf reads the attempt attribute, treating anything unusable as 1.
func attemptOf(attrs map[string]string) int {
	n, err := strconv.Atoi(attrs[attemptAttribute])
	if err != nil || n < 1 {
		return 1
	}
	return n
}
