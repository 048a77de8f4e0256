// README: FCM push sender with bounded retries on transport faults.
package push

import (
	"context"
	"strconv"

	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
)

// Action identifies what the rider app should do with a push.
type Action string

const (
	ActionDispatched     Action = "dispatch-request:dispatched"
	ActionNearPickup     Action = "dispatch-request:near-pickup"
	ActionNearDropoff    Action = "dispatch-request:near-dropoff"
	ActionDeliveryCancel Action = "dispatch-request:delivery-cancel"
	ActionBan            Action = "rider:ban"
	ActionUndoBan        Action = "rider:undo-ban"
)

const sendAttempts = 3

// Messenger is the slice of the FCM client the sender uses.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// TokenSource resolves a rider's registration token; "" means the rider
// has no token and the push is skipped silently.
type TokenSource interface {
	FCMToken(ctx context.Context, riderID int64) (string, error)
}

type Sender struct {
	client Messenger
	tokens TokenSource
	log    zerolog.Logger
}

func NewSender(client Messenger, tokens TokenSource, log zerolog.Logger) *Sender {
	return &Sender{client: client, tokens: tokens, log: log.With().Str("component", "push").Logger()}
}

// SendAction pushes an action to the rider's device. refID names the entity
// the action refers to (dispatch id for delivery pushes, rider id for
// ban pushes). Transport faults are retried up to sendAttempts times.
func (s *Sender) SendAction(ctx context.Context, riderID int64, action Action, refID string) error {
	token, err := s.tokens.FCMToken(ctx, riderID)
	if err != nil {
		return err
	}
	if token == "" {
		s.log.Debug().Int64("rider_id", riderID).Str("action", string(action)).Msg("no registration token, push skipped")
		return nil
	}

	message := &messaging.Message{
		Token: token,
		Data: map[string]string{
			"action":   string(action),
			"id":       refID,
			"rider_id": strconv.FormatInt(riderID, 10),
		},
	}

	var lastErr error
	for attempt := 0; attempt < sendAttempts; attempt++ {
		if _, err := s.client.Send(ctx, message); err != nil {
			lastErr = err
			s.log.Error().Err(err).Int("attempt", attempt+1).Int64("rider_id", riderID).Msg("fcm send failed")
			continue
		}
		return nil
	}
	return lastErr
}
