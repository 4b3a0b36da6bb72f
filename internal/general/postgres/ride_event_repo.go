package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"campuscart/internal/domain/ride"
	"campuscart/internal/domain/user"
	"campuscart/internal/ports"
)

// RideEventRepo appends and reads the ride_events audit trail.
type RideEventRepo struct {
	pool *pgxpool.Pool
}

// NewRideEventRepo constructs a new RideEventRepo.
func NewRideEventRepo(pool *pgxpool.Pool) ports.RideEventRepository {
	return &RideEventRepo{pool: pool}
}

func (repo *RideEventRepo) Append(ctx context.Context, e *ride.Event) error {
	q := runner(ctx, repo.pool)

	// empty from_status marks the creation event
	var from *string
	if e.FromStatus != "" {
		s := e.FromStatus.String()
		from = &s
	}

	err := q.QueryRow(ctx, `
		INSERT INTO ride_events (ride_id, from_status, to_status, actor_role, actor_id, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, e.RideID, from, e.ToStatus.String(), e.ActorRole.String(), e.ActorID, e.Reason,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append ride event: %w", err)
	}
	return nil
}

func (repo *RideEventRepo) ListForRide(ctx context.Context, rideID string) ([]ride.Event, error) {
	q := runner(ctx, repo.pool)

	rows, err := q.Query(ctx, `
		SELECT id, ride_id, from_status, to_status, actor_role, actor_id, reason, created_at
		FROM ride_events
		WHERE ride_id = $1
		ORDER BY id
	`, rideID)
	if err != nil {
		return nil, fmt.Errorf("list ride events: %w", err)
	}
	defer rows.Close()

	var out []ride.Event
	for rows.Next() {
		var (
			e         ride.Event
			from      *string
			toStatus  string
			actorRole string
		)
		if err := rows.Scan(&e.ID, &e.RideID, &from, &toStatus, &actorRole, &e.ActorID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ride event: %w", err)
		}
		if from != nil {
			e.FromStatus = ride.Status(*from)
		}
		e.ToStatus = ride.Status(toStatus)
		e.ActorRole = user.Role(actorRole)
		out = append(out, e)
	}
	return out, rows.Err()
}
