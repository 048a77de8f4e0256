// README: Working-state publisher tests against an in-process Redis.
package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishWorkingState(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, TopicRiderWorkingState)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx) // wait for the subscription to be live
	require.NoError(t, err)

	pub := NewRedisPublisher(client)
	require.NoError(t, pub.PublishWorkingState(ctx, 42, true))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var payload workingStateMessage
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
	assert.Equal(t, int64(42), payload.RiderID)
	assert.Equal(t, "available", payload.State)
	assert.Equal(t, "working-state", payload.EventType)
}

func TestPublishWorkingStateUnavailable(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub := NewRedisPublisher(client)
	require.NoError(t, pub.PublishWorkingState(context.Background(), 7, false))
}
