package mq

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
)

// LogBackend is used when no broker is configured. Publishing logs the
// payload and drops it; subscribing waits for cancellation.
type LogBackend struct {
	logger zerolog.Logger
}

func NewLogBackend(logger zerolog.Logger) *LogBackend {
	return &LogBackend{logger: logger}
}

func (l *LogBackend) Publish(_ context.Context, channel string, data []byte, _ map[string]string) (string, error) {
	id := newMessageID()
	event := l.logger.Warn().
		Str("channel", channel).
		Str("message_id", id)
	if json.Valid(data) {
		event = event.RawJSON("payload", data)
	}
	event.Msg("no message queue configured; message dropped")
	return id, nil
}

func (l *LogBackend) Subscribe(ctx context.Context, channel string, _ Handler) error {
	l.logger.Warn().Str("channel", channel).Msg("no message queue configured; nothing to consume")
	<-ctx.Done()
	return ctx.Err()
}

func (l *LogBackend) Close() error {
	return nil
}
