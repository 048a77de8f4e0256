// README: Dispatch store backed by PostgreSQL; history rows are insert-only.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// CreateDispatch inserts the dispatch, its fleet task mapping and the
// initial DISPATCHED event in one transaction.
func (s *Store) CreateDispatch(ctx context.Context, d *Dispatch) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO dispatch_requests (
			dispatch_id, rider_id, order_id,
			pickup_task_id, delivery_task_id, distance_km, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.RiderID, d.OrderID,
		d.PickupTaskID, d.DeliveryTaskID, d.DistanceKm, d.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrExists
		}
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO dispatch_state_events (dispatch_id, state, created_at)
		VALUES ($1, $2, $3)`,
		d.ID, string(StateDispatched), d.CreatedAt,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) GetDispatch(ctx context.Context, dispatchID string) (*Dispatch, error) {
	var d Dispatch
	err := s.db.QueryRow(ctx, `
		SELECT dispatch_id, rider_id, order_id,
		       pickup_task_id, delivery_task_id, distance_km, created_at
		FROM dispatch_requests
		WHERE dispatch_id = $1`, dispatchID,
	).Scan(&d.ID, &d.RiderID, &d.OrderID,
		&d.PickupTaskID, &d.DeliveryTaskID, &d.DistanceKm, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *StateEvent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO dispatch_state_events (dispatch_id, state, created_at)
		VALUES ($1, $2, $3)`,
		e.DispatchID, string(e.State), e.CreatedAt,
	)
	return err
}

// LatestState returns the state of the most recent event. Append ordering
// in the events table defines the total order per dispatch.
func (s *Store) LatestState(ctx context.Context, dispatchID string) (State, error) {
	var state State
	err := s.db.QueryRow(ctx, `
		SELECT state FROM dispatch_state_events
		WHERE dispatch_id = $1
		ORDER BY id DESC
		LIMIT 1`, dispatchID,
	).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return state, nil
}

// InProgressByRider lists the rider's dispatches whose latest event is not
// terminal, oldest first.
func (s *Store) InProgressByRider(ctx context.Context, riderID int64) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT d.dispatch_id
		FROM dispatch_requests d
		JOIN LATERAL (
			SELECT state FROM dispatch_state_events
			WHERE dispatch_id = d.dispatch_id
			ORDER BY id DESC
			LIMIT 1
		) latest ON TRUE
		WHERE d.rider_id = $1
		  AND latest.state NOT IN ('DECLINED', 'IGNORED', 'COMPLETED', 'CANCELLED')
		ORDER BY d.created_at`, riderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AppendCancellation writes the CANCELLED event and the classified reason
// atomically.
func (s *Store) AppendCancellation(ctx context.Context, dispatchID, reason string, at time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO dispatch_state_events (dispatch_id, state, created_at)
		VALUES ($1, $2, $3)`,
		dispatchID, string(StateCancelled), at,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO dispatch_cancel_reasons (dispatch_id, reason, created_at)
		VALUES ($1, $2, $3)`,
		dispatchID, reason, at,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Details returns current state plus cancel reason for each dispatch id.
func (s *Store) Details(ctx context.Context, dispatchIDs []string) ([]Detail, error) {
	rows, err := s.db.Query(ctx, `
		SELECT d.dispatch_id, latest.state, COALESCE(c.reason, '')
		FROM dispatch_requests d
		JOIN LATERAL (
			SELECT state FROM dispatch_state_events
			WHERE dispatch_id = d.dispatch_id
			ORDER BY id DESC
			LIMIT 1
		) latest ON TRUE
		LEFT JOIN dispatch_cancel_reasons c ON c.dispatch_id = d.dispatch_id
		WHERE d.dispatch_id = ANY($1)
		ORDER BY d.created_at`, dispatchIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []Detail
	for rows.Next() {
		var det Detail
		if err := rows.Scan(&det.DispatchID, &det.State, &det.CancelReason); err != nil {
			return nil, err
		}
		details = append(details, det)
	}
	return details, rows.Err()
}

// AcceptanceCounts returns how many dispatches the rider accepted and how
// many they responded to at all within [from, to).
func (s *Store) AcceptanceCounts(ctx context.Context, riderID int64, from, to time.Time) (accepted, responded int, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE e.state = 'ACCEPTED'),
			COUNT(*)
		FROM dispatch_state_events e
		JOIN dispatch_requests d ON d.dispatch_id = e.dispatch_id
		WHERE d.rider_id = $1
		  AND e.state IN ('ACCEPTED', 'DECLINED', 'IGNORED')
		  AND e.created_at >= $2 AND e.created_at < $3`,
		riderID, from, to,
	).Scan(&accepted, &responded)
	return accepted, responded, err
}
