// README: Rider service applies working-state transitions and emits working-state events.
package rider

import (
	"context"

	"github.com/rs/zerolog"
)

// StateStore is the persistence surface the service needs: a locked
// read-modify-write of the rider's state plus plain reads.
type StateStore interface {
	WithLockedState(ctx context.Context, riderID int64, fn func(current State) (State, error)) error
	Get(ctx context.Context, riderID int64) (*Rider, error)
	FCMToken(ctx context.Context, riderID int64) (string, error)
}

// Publisher delivers rider working-state change events after commit.
// Delivery is best-effort; failures must never affect the committed state.
type Publisher interface {
	PublishWorkingState(ctx context.Context, riderID int64, available bool) error
}

type Service struct {
	store  StateStore
	events Publisher
	log    zerolog.Logger
}

func NewService(store StateStore, events Publisher, log zerolog.Logger) *Service {
	return &Service{store: store, events: events, log: log.With().Str("component", "rider").Logger()}
}

// StartWork moves an AVAILABLE rider to READY (via STARTING) as one
// logical transition.
func (s *Service) StartWork(ctx context.Context, riderID int64) error {
	return s.apply(ctx, riderID, ActionStartWork)
}

// EnableNewDispatch re-opens a rider on BREAK (or one mid-start) for new
// dispatches.
func (s *Service) EnableNewDispatch(ctx context.Context, riderID int64) error {
	return s.apply(ctx, riderID, ActionEnableDispatch)
}

// DisableNewDispatch pauses new dispatches for a READY rider.
func (s *Service) DisableNewDispatch(ctx context.Context, riderID int64) error {
	return s.apply(ctx, riderID, ActionDisableDispatch)
}

// EndWork moves a READY or BREAK rider back to AVAILABLE (via ENDING) as
// one logical transition.
func (s *Service) EndWork(ctx context.Context, riderID int64) error {
	return s.apply(ctx, riderID, ActionEndWork)
}

// Block suspends a READY or BREAK rider into PENDING.
func (s *Service) Block(ctx context.Context, riderID int64) error {
	return s.apply(ctx, riderID, ActionBlock)
}

// Unblock releases a PENDING rider back to AVAILABLE. Any other source
// state is an invalid transition, never a silent no-op.
func (s *Service) Unblock(ctx context.Context, riderID int64) error {
	return s.apply(ctx, riderID, ActionUnblock)
}

func (s *Service) Get(ctx context.Context, riderID int64) (*Rider, error) {
	return s.store.Get(ctx, riderID)
}

func (s *Service) FCMToken(ctx context.Context, riderID int64) (string, error) {
	return s.store.FCMToken(ctx, riderID)
}

func (s *Service) apply(ctx context.Context, riderID int64, action Action) error {
	var before, after State
	err := s.store.WithLockedState(ctx, riderID, func(current State) (State, error) {
		next, err := Apply(current, action)
		if err != nil {
			return current, err
		}
		before, after = current, next
		return next, nil
	})
	if err != nil {
		return err
	}

	// The event fires only when the READY boundary is crossed; publishing
	// happens after commit and its failure is logged, not propagated.
	if (before == StateReady) != (after == StateReady) {
		if err := s.events.PublishWorkingState(ctx, riderID, after == StateReady); err != nil {
			s.log.Error().Err(err).Int64("rider_id", riderID).Msg("publish working-state event")
		}
	}
	return nil
}
