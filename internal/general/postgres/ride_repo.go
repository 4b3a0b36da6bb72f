package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campuscart/internal/domain/ride"
	"campuscart/internal/ports"
)

// RideRepo persists rides using pgx and plain SQL.
type RideRepo struct {
	pool *pgxpool.Pool
}

// NewRideRepo constructs a new RideRepo.
func NewRideRepo(pool *pgxpool.Pool) ports.RideRepository {
	return &RideRepo{pool: pool}
}

const rideColumns = `
	id, created_at, updated_at, rider_id, driver_id, cart_id, status,
	pickup_address, pickup_lat, pickup_lng,
	dropoff_address, dropoff_lat, dropoff_lng,
	notes, requested_at, accepted_at, picked_up_at, dropped_off_at,
	cancelled_at, cancel_reason, distance_km, duration_minutes`

func (repo *RideRepo) Create(ctx context.Context, r *ride.Ride) error {
	q := runner(ctx, repo.pool)

	_, err := q.Exec(ctx, `
		INSERT INTO rides (
			id, created_at, updated_at, rider_id, status,
			pickup_address, pickup_lat, pickup_lng,
			dropoff_address, dropoff_lat, dropoff_lng,
			notes, requested_at, distance_km, duration_minutes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		r.ID, r.CreatedAt, r.UpdatedAt, r.RiderID, r.Status.String(),
		r.Pickup.Address, r.Pickup.Latitude, r.Pickup.Longitude,
		r.Dropoff.Address, r.Dropoff.Latitude, r.Dropoff.Longitude,
		r.Notes, r.RequestedAt, r.DistanceKM, r.DurationMinutes,
	)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	return nil
}

func (repo *RideRepo) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	q := runner(ctx, repo.pool)

	row := q.QueryRow(ctx, `SELECT`+rideColumns+` FROM rides WHERE id = $1`, id)
	out, err := scanRide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ride.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ride: %w", err)
	}
	return out, nil
}

func (repo *RideRepo) List(ctx context.Context, filter ports.RideFilter) ([]*ride.Ride, error) {
	q := runner(ctx, repo.pool)

	var (
		where []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, filter.Status.String())
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.RiderID != "" {
		args = append(args, filter.RiderID)
		where = append(where, "rider_id = $"+strconv.Itoa(len(args)))
	}
	if filter.DriverID != "" {
		args = append(args, filter.DriverID)
		where = append(where, "driver_id = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT` + rideColumns + ` FROM rides`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY requested_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	defer rows.Close()

	var out []*ride.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (repo *RideRepo) ActiveForDriver(ctx context.Context, driverID string) (*ride.Ride, error) {
	q := runner(ctx, repo.pool)

	row := q.QueryRow(ctx, `
		SELECT`+rideColumns+`
		FROM rides
		WHERE driver_id = $1 AND status IN ($2, $3)
		ORDER BY accepted_at DESC
		LIMIT 1
	`, driverID, ride.StatusAccepted.String(), ride.StatusInProgress.String())

	out, err := scanRide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ride.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("active ride for driver: %w", err)
	}
	return out, nil
}

// AcceptRequested is the linearization point of the accept race: the
// conditional UPDATE succeeds for exactly one caller because the row leaves
// the requested state atomically.
func (repo *RideRepo) AcceptRequested(ctx context.Context, rideID, driverID, cartID string, at time.Time) (bool, error) {
	q := runner(ctx, repo.pool)

	tag, err := q.Exec(ctx, `
		UPDATE rides
		SET driver_id = $2, cart_id = $3, status = $4, accepted_at = $5, updated_at = now()
		WHERE id = $1 AND status = $6
	`, rideID, driverID, cartID, ride.StatusAccepted.String(), at, ride.StatusRequested.String())
	if err != nil {
		return false, fmt.Errorf("accept ride: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// lost the swap, or the ride never existed
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rides WHERE id = $1)`, rideID).Scan(&exists); err != nil {
		return false, fmt.Errorf("accept ride existence check: %w", err)
	}
	if !exists {
		return false, ride.ErrNotFound
	}
	return false, nil
}

func (repo *RideRepo) SaveStatus(ctx context.Context, r *ride.Ride) error {
	q := runner(ctx, repo.pool)

	tag, err := q.Exec(ctx, `
		UPDATE rides
		SET status = $2, picked_up_at = $3, dropped_off_at = $4,
		    cancelled_at = $5, cancel_reason = $6, updated_at = $7
		WHERE id = $1
	`, r.ID, r.Status.String(), r.PickedUpAt, r.DroppedOffAt, r.CancelledAt, r.CancelReason, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save ride status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ride.ErrNotFound
	}
	return nil
}

func scanRide(row pgx.Row) (*ride.Ride, error) {
	var (
		out    ride.Ride
		status string
	)
	err := row.Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt, &out.RiderID, &out.DriverID, &out.CartID, &status,
		&out.Pickup.Address, &out.Pickup.Latitude, &out.Pickup.Longitude,
		&out.Dropoff.Address, &out.Dropoff.Latitude, &out.Dropoff.Longitude,
		&out.Notes, &out.RequestedAt, &out.AcceptedAt, &out.PickedUpAt, &out.DroppedOffAt,
		&out.CancelledAt, &out.CancelReason, &out.DistanceKM, &out.DurationMinutes,
	)
	if err != nil {
		return nil, err
	}
	out.Status = ride.Status(status)
	return &out, nil
}
