// README: Dispatch orchestrator: coordinates fleet sync, state mutations, and notifications.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"riderhub/internal/fleet"
	"riderhub/internal/modules/delivery"
	"riderhub/internal/modules/rider"
	"riderhub/internal/push"
	"riderhub/internal/types"
)

// RiderStates is the rider state machine surface the orchestrator drives.
type RiderStates interface {
	StartWork(ctx context.Context, riderID int64) error
	EndWork(ctx context.Context, riderID int64) error
	EnableNewDispatch(ctx context.Context, riderID int64) error
	DisableNewDispatch(ctx context.Context, riderID int64) error
	Block(ctx context.Context, riderID int64) error
	Unblock(ctx context.Context, riderID int64) error
	Get(ctx context.Context, riderID int64) (*rider.Rider, error)
}

// Ledger is the delivery history surface the orchestrator writes through.
type Ledger interface {
	CreateDispatch(ctx context.Context, d *delivery.Dispatch) error
	Get(ctx context.Context, dispatchID string) (*delivery.Dispatch, error)
	Append(ctx context.Context, dispatchID string, state delivery.State, occurredAt time.Time) (*delivery.StateEvent, error)
	CurrentState(ctx context.Context, dispatchID string) (delivery.State, error)
	InProgressDispatches(ctx context.Context, riderID int64) ([]string, error)
	RecordCancellation(ctx context.Context, dispatchID, reason string) error
	Details(ctx context.Context, dispatchIDs []string) ([]delivery.Detail, error)
	AcceptanceRate(ctx context.Context, riderID int64, from, to time.Time) (float64, error)
}

// Pusher sends push actions to rider devices after commits.
type Pusher interface {
	SendAction(ctx context.Context, riderID int64, action push.Action, refID string) error
}

// DistanceEstimator yields an estimated delivery distance for new
// dispatches; nil disables estimation.
type DistanceEstimator interface {
	EstimateKm(ctx context.Context, pickup, dropoff types.Point) float64
}

type Service struct {
	riders RiderStates
	ledger Ledger
	fleet  fleet.Adapter
	push   Pusher
	routes DistanceEstimator

	syncEnabled bool
	log         zerolog.Logger
}

type Deps struct {
	Riders      RiderStates
	Ledger      Ledger
	Fleet       fleet.Adapter
	Push        Pusher
	Routes      DistanceEstimator
	SyncEnabled bool
	Log         zerolog.Logger
}

func NewService(deps Deps) *Service {
	return &Service{
		riders:      deps.Riders,
		ledger:      deps.Ledger,
		fleet:       deps.Fleet,
		push:        deps.Push,
		routes:      deps.Routes,
		syncEnabled: deps.SyncEnabled,
		log:         deps.Log.With().Str("component", "dispatch").Logger(),
	}
}

// UpdateAvailability starts or ends the rider's work shift. With fleet
// sync enabled the provider is told first; any sync failure aborts before
// the local state is touched.
func (s *Service) UpdateAvailability(ctx context.Context, riderID int64, wantsAvailable bool) error {
	if s.syncEnabled {
		if err := s.fleet.OnOffDuty(ctx, riderID, wantsAvailable); err != nil {
			if gateErr := s.gateSync(opAvailability, err); gateErr != nil {
				return gateErr
			}
		}
	}
	if wantsAvailable {
		return s.riders.StartWork(ctx, riderID)
	}
	return s.riders.EndWork(ctx, riderID)
}

// UpdateDispatchable toggles the rider's break: a working rider stops
// receiving new dispatches without ending the shift. Purely local; the
// working-state event on the READY boundary tells downstream consumers.
func (s *Service) UpdateDispatchable(ctx context.Context, riderID int64, dispatchable bool) error {
	if dispatchable {
		return s.riders.EnableNewDispatch(ctx, riderID)
	}
	return s.riders.DisableNewDispatch(ctx, riderID)
}

// RecordDispatchResponse records the rider's answer to a dispatch. Synced
// responses that the provider rejects are not written locally.
func (s *Service) RecordDispatchResponse(ctx context.Context, dispatchID string, response Response) error {
	state, ok := responseStates[response]
	if !ok {
		return fmt.Errorf("%w: unknown response %q", ErrBadRequest, response)
	}

	d, err := s.ledger.Get(ctx, dispatchID)
	if err != nil {
		return err
	}

	if s.syncEnabled && response != ResponseNotified {
		if err := s.fleet.UpdateTaskStatus(ctx, d.PickupTaskID, responseTaskStatus[response]); err != nil {
			if gateErr := s.gateSync(opDispatchResponse, err); gateErr != nil {
				return gateErr
			}
		}
	}

	_, err = s.ledger.Append(ctx, dispatchID, state, time.Now())
	return err
}

// RecordDeliveryState records a delivery progress report. PICK_UP syncs
// both provider legs (pickup successful, delivery started) and COMPLETED
// closes the delivery leg; every required leg must succeed before any
// local history is written.
func (s *Service) RecordDeliveryState(ctx context.Context, dispatchID string, state delivery.State) error {
	if !reportableStates[state] {
		return fmt.Errorf("%w: unknown delivery state %q", ErrBadRequest, state)
	}

	d, err := s.ledger.Get(ctx, dispatchID)
	if err != nil {
		return err
	}

	if s.syncEnabled {
		for _, leg := range syncLegs(d, state) {
			if err := s.fleet.UpdateTaskStatus(ctx, leg.taskID, leg.status); err != nil {
				if gateErr := s.gateSync(opDeliveryState, err); gateErr != nil {
					return gateErr
				}
			}
		}
	}

	if _, err := s.ledger.Append(ctx, dispatchID, state, time.Now()); err != nil {
		return err
	}

	if action, ok := statePushActions[state]; ok {
		if err := s.push.SendAction(ctx, d.RiderID, action, dispatchID); err != nil {
			s.log.Error().Err(err).Str("dispatch_id", dispatchID).Msg("delivery-state push failed")
		}
	}
	return nil
}

// Ban suspends or reinstates a rider. A ban is the PENDING working state,
// so both directions reuse the state machine's Block/Unblock rules.
func (s *Service) Ban(ctx context.Context, riderID int64, banned bool) error {
	var err error
	if banned {
		err = s.riders.Block(ctx, riderID)
	} else {
		err = s.riders.Unblock(ctx, riderID)
	}
	if err != nil {
		return err
	}

	action := push.ActionUndoBan
	if banned {
		action = push.ActionBan
	}
	if err := s.push.SendAction(ctx, riderID, action, fmt.Sprintf("%d", riderID)); err != nil {
		s.log.Error().Err(err).Int64("rider_id", riderID).Msg("ban push failed")
	}
	return nil
}

// CreateDispatch registers an assignment arriving from the upstream
// dispatcher and notifies the rider.
func (s *Service) CreateDispatch(ctx context.Context, cmd CreateDispatchCommand) error {
	deliveryTaskID := cmd.DeliveryTaskID
	if deliveryTaskID == "" && cmd.RelationshipKey != "" && s.syncEnabled {
		id, err := s.fleet.RetrieveDeliveryTaskID(ctx, cmd.RelationshipKey)
		if err != nil {
			return s.gateSync(opDeliveryState, err)
		}
		deliveryTaskID = id
	}

	var distanceKm float64
	if s.routes != nil && (cmd.Pickup != types.Point{} || cmd.Dropoff != types.Point{}) {
		distanceKm = s.routes.EstimateKm(ctx, cmd.Pickup, cmd.Dropoff)
	}

	if err := s.ledger.CreateDispatch(ctx, &delivery.Dispatch{
		ID:             cmd.DispatchID,
		RiderID:        cmd.RiderID,
		OrderID:        cmd.OrderID,
		PickupTaskID:   cmd.PickupTaskID,
		DeliveryTaskID: deliveryTaskID,
		DistanceKm:     distanceKm,
	}); err != nil {
		return err
	}

	if err := s.push.SendAction(ctx, cmd.RiderID, push.ActionDispatched, cmd.DispatchID); err != nil {
		s.log.Error().Err(err).Str("dispatch_id", cmd.DispatchID).Msg("dispatched push failed")
	}
	return nil
}

// CancelDispatch handles an order-cancelled notification: CANCELLED event
// plus classified reason, then a cancel push to the owning rider.
func (s *Service) CancelDispatch(ctx context.Context, dispatchID, reason string) error {
	d, err := s.ledger.Get(ctx, dispatchID)
	if err != nil {
		return err
	}
	if err := s.ledger.RecordCancellation(ctx, dispatchID, reason); err != nil {
		return err
	}
	if err := s.push.SendAction(ctx, d.RiderID, push.ActionDeliveryCancel, dispatchID); err != nil {
		s.log.Error().Err(err).Str("dispatch_id", dispatchID).Msg("cancel push failed")
	}
	return nil
}

// Status reports whether the rider is working (READY) and which of their
// dispatches are still in progress.
func (s *Service) Status(ctx context.Context, riderID int64) (*RiderStatus, error) {
	r, err := s.riders.Get(ctx, riderID)
	if err != nil {
		return nil, err
	}
	current, err := s.ledger.InProgressDispatches(ctx, riderID)
	if err != nil {
		return nil, err
	}
	return &RiderStatus{Working: r.State == rider.StateReady, CurrentDispatches: current}, nil
}

// DispatchDetails returns current state and cancel reason per dispatch.
func (s *Service) DispatchDetails(ctx context.Context, dispatchIDs []string) ([]delivery.Detail, error) {
	return s.ledger.Details(ctx, dispatchIDs)
}

// AcceptanceRate returns the rider's dispatch acceptance rate over a
// date range.
func (s *Service) AcceptanceRate(ctx context.Context, riderID int64, from, to time.Time) (float64, error) {
	return s.ledger.AcceptanceRate(ctx, riderID, from, to)
}

// taskLeg is one provider call required before a local delivery append.
type taskLeg struct {
	taskID string
	status fleet.TaskStatus
}

func syncLegs(d *delivery.Dispatch, state delivery.State) []taskLeg {
	switch state {
	case delivery.StatePickUp:
		return []taskLeg{
			{taskID: d.PickupTaskID, status: fleet.TaskSuccessful},
			{taskID: d.DeliveryTaskID, status: fleet.TaskStarted},
		}
	case delivery.StateCompleted:
		return []taskLeg{
			{taskID: d.DeliveryTaskID, status: fleet.TaskSuccessful},
		}
	default:
		return nil
	}
}

// gateSync applies the per-operation sync policy to a fleet error. A nil
// return means the failure is soft for this operation: it is logged and
// the local mutation proceeds.
func (s *Service) gateSync(op syncOp, err error) error {
	policy := syncPolicies[op]
	var rejection *fleet.RejectionError
	switch {
	case errors.As(err, &rejection):
		if policy.blockOnReject {
			return err
		}
	case errors.Is(err, fleet.ErrNoResponse):
		if policy.blockOnNoResponse {
			s.log.Error().Err(err).Str("operation", string(op)).Msg("fleet sync unreachable, aborting")
			return fmt.Errorf("%w: %s", ErrExternalUnavailable, op)
		}
	default:
		return err
	}
	s.log.Warn().Err(err).Str("operation", string(op)).Msg("fleet sync failed, proceeding locally")
	return nil
}
