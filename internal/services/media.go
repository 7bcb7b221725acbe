package services

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixelvault/apiserver/internal/mq"
	"github.com/pixelvault/apiserver/types"
)

// MediaCleanupChannel carries media objects whose destroy must be retried.
const MediaCleanupChannel = "media-cleanup"

const destroyTimeout = 30 * time.Second

// MediaStore is the external media provider.
type MediaStore interface {
	// Upload stores r. On failure the returned asset may still carry the
	// PublicID of a partially created object.
	Upload(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (types.MediaAsset, error)
	Destroy(ctx context.Context, publicID string) error
}

// Publisher sends JSON messages to a channel.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, v any) (string, error)
}

// Subscriber consumes messages from a channel until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// MediaCleanup runs compensating destroys. A failed destroy is logged and
// queued for the worker instead of failing the caller.
type MediaCleanup struct {
	media  MediaStore
	queue  Publisher
	now    func() time.Time
	logger zerolog.Logger
}

func NewMediaCleanup(media MediaStore, queue Publisher, logger zerolog.Logger) *MediaCleanup {
	return &MediaCleanup{
		media:  media,
		queue:  queue,
		now:    time.Now,
		logger: logger.With().Str("component", "media_cleanup").Logger(),
	}
}

// Destroy removes publicID best-effort and returns the destroy error, if
// any, for callers that report partial outcomes.
func (c *MediaCleanup) Destroy(ctx context.Context, publicID, reason string) error {
	if publicID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, destroyTimeout)
	defer cancel()

	err := c.media.Destroy(ctx, publicID)
	if err == nil {
		return nil
	}

	c.logger.Warn().Err(err).Str("public_id", publicID).Str("reason", reason).Msg("media destroy failed; queueing retry")
	if c.queue != nil {
		event := types.MediaCleanupEvent{PublicID: publicID, Reason: reason, QueuedAt: c.now().UTC()}
		if _, qerr := c.queue.PublishJSON(context.WithoutCancel(ctx), MediaCleanupChannel, event); qerr != nil {
			c.logger.Error().Err(qerr).Str("public_id", publicID).Msg("failed to queue media cleanup")
		}
	}
	return err
}

// Handle retries one queued destroy. Returning an error hands the message
// back to the queue, which redelivers it until its attempts run out.
func (c *MediaCleanup) Handle(ctx context.Context, msg mq.Message) error {
	var event types.MediaCleanupEvent
	if err := msg.Decode(&event); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("dropping malformed media cleanup message")
		return nil
	}
	if event.PublicID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, destroyTimeout)
	defer cancel()
	if err := c.media.Destroy(ctx, event.PublicID); err != nil {
		c.logger.Warn().Err(err).
			Str("public_id", event.PublicID).
			Int("attempt", msg.Attempt).
			Msg("media cleanup retry failed")
		return err
	}
	c.logger.Info().Str("public_id", event.PublicID).Str("reason", event.Reason).Msg("orphaned media destroyed")
	return nil
}

// Run consumes the cleanup channel until ctx is cancelled.
func (c *MediaCleanup) Run(ctx context.Context, sub Subscriber) error {
	c.logger.Info().Str("channel", MediaCleanupChannel).Msg("media cleanup worker started")
	return sub.Subscribe(ctx, MediaCleanupChannel, c.Handle)
}
