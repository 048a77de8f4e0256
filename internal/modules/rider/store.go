// README: Rider store backed by PostgreSQL; non-blocking row locks via FOR UPDATE NOWAIT.
package rider

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// lockNotAvailable is the SQLSTATE Postgres reports when a NOWAIT lock
// request cannot be granted immediately.
const lockNotAvailable = "55P03"

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// WithLockedState runs fn with the rider's current state held under an
// exclusive non-blocking row lock. The state returned by fn is persisted,
// together with an availability history row, in the same transaction.
// Lock contention surfaces as ErrConflict without waiting.
func (s *Store) WithLockedState(ctx context.Context, riderID int64, fn func(current State) (State, error)) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var current State
	err = tx.QueryRow(ctx, `
		SELECT state FROM riders
		WHERE rider_id = $1
		FOR UPDATE NOWAIT`, riderID,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
			return ErrConflict
		}
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE riders
		SET state = $1, modified_at = NOW()
		WHERE rider_id = $2`, string(next), riderID,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO rider_availability_history (rider_id, is_available, created_at)
		VALUES ($1, $2, NOW())`, riderID, next == StateReady,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, riderID int64) (*Rider, error) {
	var r Rider
	err := s.db.QueryRow(ctx, `
		SELECT rider_id, state, created_at, modified_at
		FROM riders
		WHERE rider_id = $1`, riderID,
	).Scan(&r.ID, &r.State, &r.CreatedAt, &r.ModifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// FCMToken returns the rider's push registration token, or "" when the
// rider has none registered.
func (s *Store) FCMToken(ctx context.Context, riderID int64) (string, error) {
	var token string
	err := s.db.QueryRow(ctx, `
		SELECT registration_token FROM rider_fcm_tokens
		WHERE rider_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, riderID,
	).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}
