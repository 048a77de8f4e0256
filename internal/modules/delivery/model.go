// README: Dispatch aggregate and append-only delivery-state history.
package delivery

import (
	"errors"
	"time"
)

type State string

const (
	StateDispatched  State = "DISPATCHED"
	StateNotified    State = "NOTIFIED"
	StateAccepted    State = "ACCEPTED"
	StateDeclined    State = "DECLINED"
	StateIgnored     State = "IGNORED"
	StateNearPickup  State = "NEAR_PICKUP"
	StatePickUp      State = "PICK_UP"
	StateLeftPickup  State = "LEFT_PICKUP"
	StateNearDropoff State = "NEAR_DROPOFF"
	StateCompleted   State = "COMPLETED"
	StateCancelled   State = "CANCELLED"
)

// terminalStates closes a dispatch: once the latest event is one of these,
// the history accepts no further appends.
var terminalStates = map[State]bool{
	StateDeclined:  true,
	StateIgnored:   true,
	StateCompleted: true,
	StateCancelled: true,
}

func (s State) Terminal() bool {
	return terminalStates[s]
}

// Dispatch is one order-to-rider assignment. The dispatch id is issued by
// the upstream dispatcher; rider and order bindings are immutable.
type Dispatch struct {
	ID             string
	RiderID        int64
	OrderID        string
	PickupTaskID   string
	DeliveryTaskID string
	DistanceKm     float64
	CreatedAt      time.Time
}

// StateEvent is one record of the per-dispatch history. Events are only
// ever appended; the latest event defines the dispatch's current state.
type StateEvent struct {
	ID         int64
	DispatchID string
	State      State
	CreatedAt  time.Time
}

// Detail is the read model served for dispatch listings.
type Detail struct {
	DispatchID   string
	State        State
	CancelReason string
}

var (
	ErrNotFound = errors.New("dispatch not found")
	ErrTerminal = errors.New("dispatch already in a terminal state")
	ErrExists   = errors.New("dispatch already exists")
)
