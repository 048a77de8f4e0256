// README: Orchestrator commands, rider responses, and sync policy table.
package dispatch

import (
	"errors"

	"riderhub/internal/fleet"
	"riderhub/internal/modules/delivery"
	"riderhub/internal/push"
	"riderhub/internal/types"
)

// Response is a rider's answer to a dispatch notification.
type Response string

const (
	ResponseNotified Response = "NOTIFIED"
	ResponseAccepted Response = "ACCEPTED"
	ResponseDeclined Response = "DECLINED"
	ResponseIgnored  Response = "IGNORED"
)

// responseStates maps a rider response to the delivery state appended to
// the history.
var responseStates = map[Response]delivery.State{
	ResponseNotified: delivery.StateNotified,
	ResponseAccepted: delivery.StateAccepted,
	ResponseDeclined: delivery.StateDeclined,
	ResponseIgnored:  delivery.StateIgnored,
}

// responseTaskStatus is the provider vocabulary for each synced response.
// NOTIFIED is never synced.
var responseTaskStatus = map[Response]fleet.TaskStatus{
	ResponseAccepted: fleet.TaskAccepted,
	ResponseDeclined: fleet.TaskDeclined,
	ResponseIgnored:  fleet.TaskDeclined,
}

// reportableStates are the delivery states a rider device may report.
var reportableStates = map[delivery.State]bool{
	delivery.StateNearPickup:  true,
	delivery.StatePickUp:      true,
	delivery.StateLeftPickup:  true,
	delivery.StateNearDropoff: true,
	delivery.StateCompleted:   true,
}

// statePushActions maps appended delivery states to the push sent to the
// owning rider afterwards.
var statePushActions = map[delivery.State]push.Action{
	delivery.StateNearPickup:  push.ActionNearPickup,
	delivery.StateNearDropoff: push.ActionNearDropoff,
}

type syncOp string

const (
	opAvailability     syncOp = "availability"
	opDispatchResponse syncOp = "dispatch-response"
	opDeliveryState    syncOp = "delivery-state"
)

// syncPolicy decides whether a fleet-sync failure blocks the local
// mutation. Rejections always block. "No response" blocks availability
// updates and the multi-leg delivery syncs, where proceeding could leave
// local and provider state diverged; single dispatch-response syncs log
// and proceed.
type syncPolicy struct {
	blockOnReject     bool
	blockOnNoResponse bool
}

var syncPolicies = map[syncOp]syncPolicy{
	opAvailability:     {blockOnReject: true, blockOnNoResponse: true},
	opDispatchResponse: {blockOnReject: true, blockOnNoResponse: false},
	opDeliveryState:    {blockOnReject: true, blockOnNoResponse: true},
}

// ErrExternalUnavailable reports that the fleet provider never answered
// and the operation could not proceed safely without it.
var ErrExternalUnavailable = errors.New("fleet provider unavailable")

// ErrBadRequest covers malformed or unknown inputs (unrecognised response
// or delivery state values).
var ErrBadRequest = errors.New("bad request")

// CreateDispatchCommand is the upstream dispatcher's assignment payload.
type CreateDispatchCommand struct {
	DispatchID      string
	RiderID         int64
	OrderID         string
	PickupTaskID    string
	DeliveryTaskID  string
	RelationshipKey string
	Pickup          types.Point
	Dropoff         types.Point
}

// RiderStatus is the read model for a rider's current situation.
type RiderStatus struct {
	Working           bool
	CurrentDispatches []string
}
