// README: Delivery ledger tests (append-only history, terminal set, queries).
package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu         sync.Mutex
	dispatches map[string]*Dispatch
	events     map[string][]StateEvent
	reasons    map[string]string
	nextID     int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		dispatches: make(map[string]*Dispatch),
		events:     make(map[string][]StateEvent),
		reasons:    make(map[string]string),
	}
}

func (m *memoryStore) CreateDispatch(ctx context.Context, d *Dispatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dispatches[d.ID]; ok {
		return ErrExists
	}
	m.dispatches[d.ID] = d
	m.appendLocked(d.ID, StateDispatched, d.CreatedAt)
	return nil
}

func (m *memoryStore) GetDispatch(ctx context.Context, dispatchID string) (*Dispatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dispatches[dispatchID]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *memoryStore) AppendEvent(ctx context.Context, e *StateEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(e.DispatchID, e.State, e.CreatedAt)
	return nil
}

func (m *memoryStore) appendLocked(dispatchID string, state State, at time.Time) {
	m.nextID++
	m.events[dispatchID] = append(m.events[dispatchID], StateEvent{
		ID: m.nextID, DispatchID: dispatchID, State: state, CreatedAt: at,
	})
}

func (m *memoryStore) LatestState(ctx context.Context, dispatchID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.events[dispatchID]
	if len(events) == 0 {
		return "", ErrNotFound
	}
	return events[len(events)-1].State, nil
}

func (m *memoryStore) InProgressByRider(ctx context.Context, riderID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, d := range m.dispatches {
		if d.RiderID != riderID {
			continue
		}
		events := m.events[id]
		if len(events) == 0 || events[len(events)-1].State.Terminal() {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memoryStore) AppendCancellation(ctx context.Context, dispatchID, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(dispatchID, StateCancelled, at)
	m.reasons[dispatchID] = reason
	return nil
}

func (m *memoryStore) Details(ctx context.Context, dispatchIDs []string) ([]Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var details []Detail
	for _, id := range dispatchIDs {
		events := m.events[id]
		if len(events) == 0 {
			continue
		}
		details = append(details, Detail{
			DispatchID:   id,
			State:        events[len(events)-1].State,
			CancelReason: m.reasons[id],
		})
	}
	return details, nil
}

func (m *memoryStore) AcceptanceCounts(ctx context.Context, riderID int64, from, to time.Time) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var accepted, responded int
	for id, d := range m.dispatches {
		if d.RiderID != riderID {
			continue
		}
		for _, e := range m.events[id] {
			if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
				continue
			}
			switch e.State {
			case StateAccepted:
				accepted++
				responded++
			case StateDeclined, StateIgnored:
				responded++
			}
		}
	}
	return accepted, responded, nil
}

func mustCreate(t *testing.T, svc *Service, id string, riderID int64) {
	t.Helper()
	require.NoError(t, svc.CreateDispatch(context.Background(), &Dispatch{
		ID: id, RiderID: riderID, OrderID: "order-" + id,
	}))
}

func TestCreateDispatchOpensWithDispatched(t *testing.T) {
	svc := NewService(newMemoryStore())
	mustCreate(t, svc, "d1", 7)

	state, err := svc.CurrentState(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, StateDispatched, state)
}

func TestCurrentStateTracksLastAppend(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()
	mustCreate(t, svc, "d1", 7)

	for _, state := range []State{StateNotified, StateAccepted, StateNearPickup, StatePickUp} {
		_, err := svc.Append(ctx, "d1", state, time.Now())
		require.NoError(t, err)
		current, err := svc.CurrentState(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, state, current)
	}
}

func TestCurrentStateUnknownDispatch(t *testing.T) {
	svc := NewService(newMemoryStore())
	_, err := svc.CurrentState(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendUnknownDispatch(t *testing.T) {
	svc := NewService(newMemoryStore())
	_, err := svc.Append(context.Background(), "missing", StateAccepted, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendAfterTerminalRejected(t *testing.T) {
	ctx := context.Background()
	for _, terminal := range []State{StateDeclined, StateIgnored, StateCompleted} {
		svc := NewService(newMemoryStore())
		mustCreate(t, svc, "d1", 7)
		_, err := svc.Append(ctx, "d1", terminal, time.Now())
		require.NoError(t, err)

		_, err = svc.Append(ctx, "d1", StatePickUp, time.Now())
		assert.ErrorIs(t, err, ErrTerminal, "append after %s", terminal)

		current, err := svc.CurrentState(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, terminal, current, "history must be untouched after a rejected append")
	}
}

func TestInProgressExcludesTerminal(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()

	mustCreate(t, svc, "open", 7)
	for i, terminal := range []State{StateDeclined, StateIgnored, StateCompleted} {
		id := string(rune('a' + i))
		mustCreate(t, svc, id, 7)
		_, err := svc.Append(ctx, id, terminal, time.Now())
		require.NoError(t, err)
	}
	mustCreate(t, svc, "cancelled", 7)
	require.NoError(t, svc.RecordCancellation(ctx, "cancelled", "restaurant issue"))
	mustCreate(t, svc, "other-rider", 8)

	ids, err := svc.InProgressDispatches(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"open"}, ids)
}

func TestRecordCancellationStoresReason(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()
	mustCreate(t, svc, "d1", 7)

	require.NoError(t, svc.RecordCancellation(ctx, "d1", "customer issue"))

	current, err := svc.CurrentState(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, current)

	details, err := svc.Details(ctx, []string{"d1"})
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "customer issue", details[0].CancelReason)

	// A cancelled dispatch is terminal: no further cancellation or append.
	assert.ErrorIs(t, svc.RecordCancellation(ctx, "d1", "again"), ErrTerminal)
}

func TestAcceptanceRate(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()
	now := time.Now()

	responses := []State{StateAccepted, StateAccepted, StateDeclined, StateIgnored}
	for i, state := range responses {
		id := string(rune('a' + i))
		mustCreate(t, svc, id, 7)
		_, err := svc.Append(ctx, id, state, now)
		require.NoError(t, err)
	}

	rate, err := svc.AcceptanceRate(ctx, 7, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, rate, 1e-9)

	rate, err = svc.AcceptanceRate(ctx, 99, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, rate, "no responses means zero rate, not an error")
}
