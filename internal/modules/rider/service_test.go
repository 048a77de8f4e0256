// README: Rider service tests (locking, auto-chain, event publication).
package rider

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStateStore struct {
	mu     sync.Mutex
	state  State
	exists bool
	token  string

	// entered/release, when set, park the caller inside the critical
	// section so tests can provoke lock contention deterministically.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeStateStore) WithLockedState(ctx context.Context, riderID int64, fn func(State) (State, error)) error {
	if !f.mu.TryLock() {
		return ErrConflict
	}
	defer f.mu.Unlock()
	if !f.exists {
		return ErrNotFound
	}
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	next, err := fn(f.state)
	if err != nil {
		return err
	}
	f.state = next
	return nil
}

func (f *fakeStateStore) Get(ctx context.Context, riderID int64) (*Rider, error) {
	if !f.exists {
		return nil, ErrNotFound
	}
	return &Rider{ID: riderID, State: f.state}, nil
}

func (f *fakeStateStore) FCMToken(ctx context.Context, riderID int64) (string, error) {
	return f.token, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []bool
	err    error
}

func (f *fakePublisher) PublishWorkingState(ctx context.Context, riderID int64, available bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, available)
	return f.err
}

func newTestService(state State) (*Service, *fakeStateStore, *fakePublisher) {
	store := &fakeStateStore{state: state, exists: true}
	pub := &fakePublisher{}
	return NewService(store, pub, zerolog.Nop()), store, pub
}

func TestStartWorkPublishesAvailable(t *testing.T) {
	svc, store, pub := newTestService(StateAvailable)

	require.NoError(t, svc.StartWork(context.Background(), 1))
	assert.Equal(t, StateReady, store.state)
	require.Len(t, pub.events, 1, "one working-state event per READY crossing")
	assert.True(t, pub.events[0])
}

func TestEndWorkPublishesUnavailable(t *testing.T) {
	svc, store, pub := newTestService(StateReady)

	require.NoError(t, svc.EndWork(context.Background(), 1))
	assert.Equal(t, StateAvailable, store.state)
	require.Len(t, pub.events, 1)
	assert.False(t, pub.events[0])
}

func TestEndWorkFromBreakDoesNotPublish(t *testing.T) {
	// BREAK is already off the READY boundary; ending work from it must
	// not emit another unavailability event.
	svc, store, pub := newTestService(StateBreak)

	require.NoError(t, svc.EndWork(context.Background(), 1))
	assert.Equal(t, StateAvailable, store.state)
	assert.Empty(t, pub.events)
}

func TestBreakCycle(t *testing.T) {
	svc, store, pub := newTestService(StateReady)
	ctx := context.Background()

	require.NoError(t, svc.DisableNewDispatch(ctx, 1))
	assert.Equal(t, StateBreak, store.state)
	require.NoError(t, svc.EnableNewDispatch(ctx, 1))
	assert.Equal(t, StateReady, store.state)
	assert.Equal(t, []bool{false, true}, pub.events)
}

func TestUnblockRequiresPending(t *testing.T) {
	for _, from := range []State{StateApplying, StateAvailable, StateReady, StateBreak, StateEnding} {
		svc, store, pub := newTestService(from)

		err := svc.Unblock(context.Background(), 1)
		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid, "unblock from %s", from)
		assert.Equal(t, from, store.state, "state must not change on a failed unblock")
		assert.Empty(t, pub.events)
	}

	svc, store, _ := newTestService(StatePending)
	require.NoError(t, svc.Unblock(context.Background(), 1))
	assert.Equal(t, StateAvailable, store.state)
}

func TestBlockRequiresReadyOrBreak(t *testing.T) {
	for _, from := range []State{StateApplying, StateAvailable, StatePending, StateStarting} {
		svc, _, _ := newTestService(from)
		var invalid *InvalidTransitionError
		require.ErrorAs(t, svc.Block(context.Background(), 1), &invalid, "block from %s", from)
	}
	for _, from := range []State{StateReady, StateBreak} {
		svc, store, _ := newTestService(from)
		require.NoError(t, svc.Block(context.Background(), 1))
		assert.Equal(t, StatePending, store.state)
	}
}

func TestUnknownRider(t *testing.T) {
	store := &fakeStateStore{exists: false}
	svc := NewService(store, &fakePublisher{}, zerolog.Nop())
	assert.ErrorIs(t, svc.StartWork(context.Background(), 99), ErrNotFound)
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	store := &fakeStateStore{state: StateAvailable, exists: true}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewService(store, pub, zerolog.Nop())

	require.NoError(t, svc.StartWork(context.Background(), 1))
	assert.Equal(t, StateReady, store.state, "commit must survive a publish failure")
}

// TestConcurrentMutationConflict holds the row lock in one operation and
// verifies the competitor fails fast with ErrConflict instead of queueing.
func TestConcurrentMutationConflict(t *testing.T) {
	store := &fakeStateStore{
		state:   StateAvailable,
		exists:  true,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewService(store, &fakePublisher{}, zerolog.Nop())
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- svc.StartWork(ctx, 1) }()
	<-store.entered

	// The row lock is held by the first caller.
	err := svc.EndWork(ctx, 1)
	assert.ErrorIs(t, err, ErrConflict)

	close(store.release)
	require.NoError(t, <-first)
	assert.Equal(t, StateReady, store.state)
}
