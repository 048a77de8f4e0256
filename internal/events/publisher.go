// README: Best-effort working-state event publishing over Redis pub/sub.
package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// TopicRiderWorkingState carries rider availability changes to downstream
// consumers (dispatcher, analytics).
const TopicRiderWorkingState = "rider.working-state"

type workingStateMessage struct {
	EventType string `json:"event_type"`
	RiderID   int64  `json:"rider_id"`
	State     string `json:"state"`
}

// RedisPublisher publishes domain events to Redis channels. Publishing is
// best-effort: callers log failures and move on.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) PublishWorkingState(ctx context.Context, riderID int64, available bool) error {
	state := "unavailable"
	if available {
		state = "available"
	}
	payload, err := json.Marshal(workingStateMessage{
		EventType: "working-state",
		RiderID:   riderID,
		State:     state,
	})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, TopicRiderWorkingState, payload).Err()
}
