package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/rideshare-app/apiserver/types"
)

// RideRepository handles persistence for rides.
type RideRepository struct {
	db *sql.DB
}

func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{db: db}
}

const rideColumns = `id, driver_id, pickup, drop_location, ride_time, status, start_otp, created_at`

func scanRide(row rowScanner) (types.Ride, error) {
	var ride types.Ride
	var startOTP sql.NullString
	err := row.Scan(
		&ride.ID,
		&ride.DriverID,
		&ride.Pickup,
		&ride.Drop,
		&ride.RideTime,
		&ride.Status,
		&startOTP,
		&ride.CreatedAt,
	)
	if err != nil {
		return types.Ride{}, wrapError(err)
	}
	ride.StartOTP = stringPtr(startOTP)
	return ride, nil
}

func (r *RideRepository) listRides(ctx context.Context, query string, args ...any) ([]types.Ride, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rides := make([]types.Ride, 0)
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rides, nil
}

func (r *RideRepository) Get(ctx context.Context, id string) (types.Ride, error) {
	const query = `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	return scanRide(r.db.QueryRowContext(ctx, query, id))
}

func (r *RideRepository) Create(ctx context.Context, ride types.Ride) (types.Ride, error) {
	if ride.ID == "" {
		ride.ID = types.NewID()
	}
	ride.CreatedAt = time.Now()

	const query = `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		ride.ID,
		ride.DriverID,
		ride.Pickup,
		ride.Drop,
		ride.RideTime,
		ride.Status,
		nullString(ride.StartOTP),
		ride.CreatedAt,
	)
	if err != nil {
		return types.Ride{}, wrapError(err)
	}
	return ride, nil
}

func (r *RideRepository) ListAvailable(ctx context.Context, pickup, drop string, rideTime time.Time) ([]types.Ride, error) {
	const query = `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE pickup = $1
		  AND drop_location = $2
		  AND ride_time = $3
		  AND status = $4
		ORDER BY created_at`
	return r.listRides(ctx, query, pickup, drop, rideTime, types.RideAvailable)
}

func (r *RideRepository) ListByDriver(ctx context.Context, driverID string) ([]types.Ride, error) {
	const query = `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE driver_id = $1
		ORDER BY ride_time DESC`
	return r.listRides(ctx, query, driverID)
}

// Transition applies t to the ride in a single conditional write. It returns
// ErrNotFound if the ride does not exist and ErrConflict if the ride is not in
// a state t allows.
func (r *RideRepository) Transition(ctx context.Context, id string, t RideTransition) error {
	const query = `
		UPDATE rides
		SET status = $1,
			start_otp = $2
		WHERE id = $3
		  AND status = ANY($4)
		  AND ($5::text = '' OR start_otp = $5)`
	result, err := r.db.ExecContext(
		ctx,
		query,
		t.To,
		nullString(t.StartOTP),
		id,
		pq.Array(t.FromStrings()),
		t.MatchOTP,
	)
	if err != nil {
		return wrapError(err)
	}
	if err := expectAffected(result, ErrConflict); err != nil {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return getErr
		}
		return err
	}
	return nil
}
