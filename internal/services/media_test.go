package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/apiserver/internal/mq"
	"github.com/pixelvault/apiserver/internal/services/servicetest"
	"github.com/pixelvault/apiserver/types"
)

func TestMediaCleanupQueuesFailedDestroy(t *testing.T) {
	media := servicetest.NewMedia()
	media.DestroyErr = servicetest.ErrUnavailable
	queue := &servicetest.Publisher{}
	cleanup := testMediaCleanup(media, queue)

	err := cleanup.Destroy(context.Background(), "photos/x.jpg", "image deleted")
	require.ErrorIs(t, err, servicetest.ErrUnavailable)

	require.Equal(t, 1, queue.Len())
	event := queue.Messages[0].Value.(types.MediaCleanupEvent)
	assert.Equal(t, "photos/x.jpg", event.PublicID)
	assert.Equal(t, "image deleted", event.Reason)

	assert.NoError(t, cleanup.Destroy(context.Background(), "", "noop"))
	assert.Equal(t, 1, queue.Len())
}

func TestMediaCleanupHandle(t *testing.T) {
	media := servicetest.NewMedia()
	cleanup := testMediaCleanup(media, nil)

	data, err := json.Marshal(types.MediaCleanupEvent{PublicID: "photos/y.jpg"})
	require.NoError(t, err)
	require.NoError(t, cleanup.Handle(context.Background(), mq.Message{ID: "1", Data: data}))
	assert.Equal(t, []string{"photos/y.jpg"}, media.Destroyed())

	media.DestroyErr = servicetest.ErrUnavailable
	assert.Error(t, cleanup.Handle(context.Background(), mq.Message{ID: "2", Data: data}))

	// Malformed messages are dropped rather than redelivered forever.
	assert.NoError(t, cleanup.Handle(context.Background(), mq.Message{ID: "3", Data: []byte("{")}))
}
