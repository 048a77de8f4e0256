// README: Delivery history ledger: append-only per-dispatch state records.
package delivery

import (
	"context"
	"errors"
	"time"
)

// HistoryStore is the persistence surface of the ledger.
type HistoryStore interface {
	CreateDispatch(ctx context.Context, d *Dispatch) error
	GetDispatch(ctx context.Context, dispatchID string) (*Dispatch, error)
	AppendEvent(ctx context.Context, e *StateEvent) error
	LatestState(ctx context.Context, dispatchID string) (State, error)
	InProgressByRider(ctx context.Context, riderID int64) ([]string, error)
	AppendCancellation(ctx context.Context, dispatchID, reason string, at time.Time) error
	Details(ctx context.Context, dispatchIDs []string) ([]Detail, error)
	AcceptanceCounts(ctx context.Context, riderID int64, from, to time.Time) (accepted, responded int, err error)
}

type Service struct {
	store HistoryStore
}

func NewService(store HistoryStore) *Service {
	return &Service{store: store}
}

// CreateDispatch registers a new dispatch; its history always opens with a
// DISPATCHED event stamped at creation time.
func (s *Service) CreateDispatch(ctx context.Context, d *Dispatch) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	return s.store.CreateDispatch(ctx, d)
}

func (s *Service) Get(ctx context.Context, dispatchID string) (*Dispatch, error) {
	return s.store.GetDispatch(ctx, dispatchID)
}

// Append records a delivery-state event. The history is a flat log: apart
// from the terminal check, no sequencing is enforced between states.
func (s *Service) Append(ctx context.Context, dispatchID string, state State, occurredAt time.Time) (*StateEvent, error) {
	if err := s.checkOpen(ctx, dispatchID); err != nil {
		return nil, err
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	e := &StateEvent{DispatchID: dispatchID, State: state, CreatedAt: occurredAt}
	if err := s.store.AppendEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// CurrentState returns the latest event's state.
func (s *Service) CurrentState(ctx context.Context, dispatchID string) (State, error) {
	return s.store.LatestState(ctx, dispatchID)
}

// InProgressDispatches lists the rider's dispatches that have not reached
// a terminal state.
func (s *Service) InProgressDispatches(ctx context.Context, riderID int64) ([]string, error) {
	return s.store.InProgressByRider(ctx, riderID)
}

// RecordCancellation appends CANCELLED and stores the classified reason in
// the same transaction.
func (s *Service) RecordCancellation(ctx context.Context, dispatchID, reason string) error {
	if err := s.checkOpen(ctx, dispatchID); err != nil {
		return err
	}
	return s.store.AppendCancellation(ctx, dispatchID, reason, time.Now())
}

func (s *Service) Details(ctx context.Context, dispatchIDs []string) ([]Detail, error) {
	return s.store.Details(ctx, dispatchIDs)
}

// AcceptanceRate returns accepted/(accepted+declined+ignored) for the
// rider over [from, to), or 0 with no responses.
func (s *Service) AcceptanceRate(ctx context.Context, riderID int64, from, to time.Time) (float64, error) {
	accepted, responded, err := s.store.AcceptanceCounts(ctx, riderID, from, to)
	if err != nil {
		return 0, err
	}
	if responded == 0 {
		return 0, nil
	}
	return float64(accepted) / float64(responded), nil
}

// checkOpen rejects appends to dispatches whose history has closed.
func (s *Service) checkOpen(ctx context.Context, dispatchID string) error {
	current, err := s.store.LatestState(ctx, dispatchID)
	if errors.Is(err, ErrNotFound) {
		// Dispatch rows always carry at least the DISPATCHED event, so a
		// missing history means a missing dispatch.
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if current.Terminal() {
		return ErrTerminal
	}
	return nil
}
