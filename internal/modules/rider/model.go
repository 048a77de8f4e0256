// README: Rider working-state machine and transition table.
package rider

import (
	"errors"
	"fmt"
	"time"
)

type State string

const (
	StateApplying  State = "APPLYING"
	StateAvailable State = "AVAILABLE"
	StateStarting  State = "STARTING"
	StateReady     State = "READY"
	StateEnding    State = "ENDING"
	StateBreak     State = "BREAK"
	StatePending   State = "PENDING"
)

type Action string

const (
	ActionStartWork       Action = "START_WORK"
	ActionEnableDispatch  Action = "ENABLE_DISPATCH"
	ActionDisableDispatch Action = "DISABLE_DISPATCH"
	ActionEndWork         Action = "END_WORK"
	ActionReset           Action = "RESET"
	ActionBlock           Action = "BLOCK"
	ActionUnblock         Action = "UNBLOCK"
)

type Rider struct {
	ID         int64
	State      State
	CreatedAt  time.Time
	ModifiedAt time.Time
}

var (
	ErrNotFound = errors.New("rider not found")
	ErrConflict = errors.New("rider state is being changed")
)

// InvalidTransitionError reports an action that is not legal from the
// rider's current state.
type InvalidTransitionError struct {
	From   State
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s from %s", e.Action, e.From)
}

type transitionKey struct {
	From   State
	Action Action
}

// transitions represents the rider working-state flow (diagram) as code.
var transitions = map[transitionKey]State{
	{StateAvailable, ActionStartWork}:     StateStarting,
	{StateStarting, ActionEnableDispatch}: StateReady,
	{StateBreak, ActionEnableDispatch}:    StateReady,
	{StateReady, ActionDisableDispatch}:   StateBreak,
	{StateReady, ActionEndWork}:           StateEnding,
	{StateBreak, ActionEndWork}:           StateEnding,
	{StateEnding, ActionReset}:            StateAvailable,
	{StateReady, ActionBlock}:             StatePending,
	{StateBreak, ActionBlock}:             StatePending,
	{StatePending, ActionUnblock}:         StateAvailable,
}

// chained maps an action to the follow-up action that fires automatically
// after it, so StartWork lands on READY and EndWork on AVAILABLE without the
// caller ever observing the intermediate state.
var chained = map[Action]Action{
	ActionStartWork: ActionEnableDispatch,
	ActionEndWork:   ActionReset,
}

// Next returns the state reached by applying a single action, without
// following auto-chained actions.
func Next(from State, action Action) (State, error) {
	to, ok := transitions[transitionKey{from, action}]
	if !ok {
		return from, &InvalidTransitionError{From: from, Action: action}
	}
	return to, nil
}

// Apply applies an action and any auto-chained follow-ups as one logical
// transition, returning the final state.
func Apply(from State, action Action) (State, error) {
	to, err := Next(from, action)
	if err != nil {
		return from, err
	}
	for {
		next, ok := chained[action]
		if !ok {
			return to, nil
		}
		action = next
		to, err = Next(to, action)
		if err != nil {
			return from, err
		}
	}
}
