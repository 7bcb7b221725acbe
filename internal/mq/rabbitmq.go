package mq

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/pixelvault/apiserver/config"
)

// RabbitMQClient publishes to and consumes from named queues on the default
// exchange. A failed delivery is republished with its attempt count bumped
// and rejected for good once maxAttempts is reached.
type RabbitMQClient struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	durable     bool
	autoDelete  bool
	maxAttempts int
	logger      zerolog.Logger

	// mu guards declared and serialises publishes on the shared channel.
	mu       sync.Mutex
	declared map[string]bool
}

func NewRabbitMQClient(cfg config.RabbitMQConfig, maxAttempts int, logger zerolog.Logger) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQClient{
		conn:        conn,
		channel:     ch,
		durable:     cfg.QueueDurable,
		autoDelete:  cfg.QueueAutoDelete,
		maxAttempts: maxAttempts,
		logger:      logger,
		declared:    map[string]bool{},
	}, nil
}

func (r *RabbitMQClient) Publish(ctx context.Context, queue string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(queue) == "" {
		return "", errors.New("rabbitmq queue name is required")
	}
	publishing := newPublishing(data, attrs, r.durable)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.declareLocked(queue); err != nil {
		return "", err
	}
	if err := r.channel.PublishWithContext(ctx, "", queue, false, false, publishing); err != nil {
		return "", fmt.Errorf("publish to %s: %w", queue, err)
	}
	return publishing.MessageId, nil
}

// Subscribe consumes queue until ctx is done or the broker closes the
// delivery channel.
func (r *RabbitMQClient) Subscribe(ctx context.Context, queue string, handler Handler) error {
	if strings.TrimSpace(queue) == "" {
		return errors.New("rabbitmq queue name is required")
	}

	consumerTag := "cleanup-" + newMessageID()
	r.mu.Lock()
	err := r.declareLocked(queue)
	var deliveries <-chan amqp.Delivery
	if err == nil {
		deliveries, err = r.channel.Consume(queue, consumerTag, false, false, false, false, nil)
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	defer func() {
		r.mu.Lock()
		_ = r.channel.Cancel(consumerTag, false)
		r.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			r.handle(ctx, queue, delivery, handler)
		}
	}
}

func (r *RabbitMQClient) handle(ctx context.Context, queue string, delivery amqp.Delivery, handler Handler) {
	attrs := headersToAttributes(delivery.Headers)
	if delivery.ContentType != "" {
		if attrs == nil {
			attrs = map[string]string{}
		}
		attrs["content-type"] = delivery.ContentType
	}
	msg := Message{
		ID:         delivery.MessageId,
		Data:       delivery.Body,
		Attributes: attrs,
		Attempt:    attemptOf(attrs),
	}

	if err := handler(ctx, msg); err == nil {
		_ = delivery.Ack(false)
		return
	}

	log := r.logger.With().Str("queue", queue).Str("message_id", msg.ID).Int("attempt", msg.Attempt).Logger()
	if msg.Attempt >= r.maxAttempts {
		log.Error().Msg("message exhausted its attempts; rejecting")
		_ = delivery.Nack(false, false)
		return
	}

	retry := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		retry[k] = v
	}
	retry[attemptAttribute] = strconv.Itoa(msg.Attempt + 1)
	if _, err := r.Publish(ctx, queue, delivery.Body, retry); err != nil {
		log.Warn().Err(err).Msg("requeue with attempt count failed; returning to queue")
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declareLocked(queue string) error {
	if r.declared[queue] {
		return nil
	}
	if _, err := r.channel.QueueDeclare(queue, r.durable, r.autoDelete, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	r.declared[queue] = true
	return nil
}

func newPublishing(data []byte, attrs map[string]string, durable bool) amqp.Publishing {
	publishing := amqp.Publishing{
		ContentType:  "application/octet-stream",
		DeliveryMode: amqp.Transient,
		MessageId:    newMessageID(),
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{},
		Body:         data,
	}
	if durable {
		publishing.DeliveryMode = amqp.Persistent
	}
	for key, value := range attrs {
		if key == "content-type" {
			publishing.ContentType = value
			continue
		}
		publishing.Headers[key] = value
	}
	return publishing
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}

func newMessageID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
