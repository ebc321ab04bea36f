package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/rideshare-app/apiserver/types"
)

// RideRequestRepository handles persistence for join requests.
type RideRequestRepository struct {
	db *sql.DB
}

func NewRideRequestRepository(db *sql.DB) *RideRequestRepository {
	return &RideRequestRepository{db: db}
}

const requestColumns = `id, ride_id, passenger_id, status, cancellation_reason, created_at`

func scanRequest(row rowScanner) (types.RideRequest, error) {
	var req types.RideRequest
	err := row.Scan(
		&req.ID,
		&req.RideID,
		&req.PassengerID,
		&req.Status,
		&req.CancellationReason,
		&req.CreatedAt,
	)
	if err != nil {
		return types.RideRequest{}, wrapError(err)
	}
	return req, nil
}

func (r *RideRequestRepository) Get(ctx context.Context, id string) (types.RideRequest, error) {
	const query = `SELECT ` + requestColumns + ` FROM ride_requests WHERE id = $1`
	return scanRequest(r.db.QueryRowContext(ctx, query, id))
}

// Create inserts a request. The partial unique index on open requests makes
// a second open request for the same ride and passenger fail with
// ErrDuplicate.
func (r *RideRequestRepository) Create(ctx context.Context, req types.RideRequest) (types.RideRequest, error) {
	if req.ID == "" {
		req.ID = types.NewID()
	}
	req.CreatedAt = time.Now()

	const query = `
		INSERT INTO ride_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		req.ID,
		req.RideID,
		req.PassengerID,
		req.Status,
		req.CancellationReason,
		req.CreatedAt,
	)
	if err != nil {
		return types.RideRequest{}, wrapError(err)
	}
	return req, nil
}

func (r *RideRequestRepository) FindOpen(ctx context.Context, rideID, passengerID string) (types.RideRequest, error) {
	const query = `
		SELECT ` + requestColumns + `
		FROM ride_requests
		WHERE ride_id = $1
		  AND passenger_id = $2
		  AND status = ANY($3)
		ORDER BY created_at DESC
		LIMIT 1`
	return scanRequest(r.db.QueryRowContext(ctx, query, rideID, passengerID, pq.Array(RequestStatusStrings(OpenRequestStatuses))))
}

// Cancel marks an open request cancelled. It returns ErrConflict if the
// request is no longer open.
func (r *RideRequestRepository) Cancel(ctx context.Context, id, reason string) error {
	const query = `
		UPDATE ride_requests
		SET status = $1,
			cancellation_reason = $2
		WHERE id = $3
		  AND status = ANY($4)`
	result, err := r.db.ExecContext(ctx, query, types.RequestCancelled, reason, id, pq.Array(RequestStatusStrings(OpenRequestStatuses)))
	if err != nil {
		return wrapError(err)
	}
	return expectAffected(result, ErrConflict)
}

func (r *RideRequestRepository) ApprovePending(ctx context.Context, rideID string) (int64, error) {
	const query = `UPDATE ride_requests SET status = $1 WHERE ride_id = $2 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, types.RequestApproved, rideID, types.RequestPending)
	if err != nil {
		return 0, wrapError(err)
	}
	return result.RowsAffected()
}

func (r *RideRequestRepository) CountByStatus(ctx context.Context, rideID string, statuses []types.RideRequestStatus) (int64, error) {
	const query = `SELECT COUNT(1) FROM ride_requests WHERE ride_id = $1 AND status = ANY($2)`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, rideID, pq.Array(RequestStatusStrings(statuses))).Scan(&count); err != nil {
		return 0, wrapError(err)
	}
	return count, nil
}

// ListByPassenger returns the passenger's requests, newest first. An empty
// statuses slice matches every status.
func (r *RideRequestRepository) ListByPassenger(ctx context.Context, passengerID string, statuses []types.RideRequestStatus) ([]types.RideRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM ride_requests
		WHERE passenger_id = $1`
	args := []any{passengerID}
	if len(statuses) > 0 {
		query += ` AND status = ANY($2)`
		args = append(args, pq.Array(RequestStatusStrings(statuses)))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]types.RideRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}
