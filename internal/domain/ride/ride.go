package ride

import (
	"errors"
	"strings"
	"time"
)

// Ride is the domain entity corresponding to the `rides` table.
// Invariant: DriverID and CartID are both set or both unset, and both are
// set exactly when the ride has been accepted (AcceptedAt is stamped).
type Ride struct {
	// Identity & audit
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Actors
	RiderID  string
	DriverID *string // nil until accepted
	CartID   *string // nil until accepted

	// Core state
	Status  Status
	Pickup  Location
	Dropoff Location
	Notes   string

	// Lifecycle timestamps
	RequestedAt  time.Time
	AcceptedAt   *time.Time
	PickedUpAt   *time.Time
	DroppedOffAt *time.Time
	CancelledAt  *time.Time

	// Additional info
	CancelReason    *string
	DistanceKM      *float64
	DurationMinutes *int
}

var (
	ErrNotFound          = errors.New("ride not found")
	ErrRiderRequired     = errors.New("rider id is required")
	ErrInvalidTransition = errors.New("invalid ride status transition")
	ErrForbidden         = errors.New("actor may not perform this transition")
	ErrNoLongerAvailable = errors.New("ride is no longer available")
	ErrAlreadyAssigned   = errors.New("driver already assigned")
	ErrNoDriverAssigned  = errors.New("no driver assigned")
)

// NewRide creates a ride in the requested state. Fails with
// ErrInvalidLocations when pickup and dropoff resolve to the same point.
func NewRide(id, riderID string, pickup, dropoff Location, notes string) (*Ride, error) {
	if riderID = strings.TrimSpace(riderID); riderID == "" {
		return nil, ErrRiderRequired
	}
	if pickup.SamePoint(dropoff) {
		return nil, ErrInvalidLocations
	}

	now := time.Now().UTC()
	distance := HaversineKM(pickup, dropoff)
	duration := EstimateDurationMinutes(distance)

	return &Ride{
		ID:              id,
		CreatedAt:       now,
		UpdatedAt:       now,
		RiderID:         riderID,
		Status:          StatusRequested,
		Pickup:          pickup,
		Dropoff:         dropoff,
		Notes:           strings.TrimSpace(notes),
		RequestedAt:     now,
		DistanceKM:      &distance,
		DurationMinutes: &duration,
	}, nil
}

// Accept binds the winning driver and cart and moves requested -> accepted.
// Callers must have won the compare-and-swap on the status column first;
// this method only mirrors the persisted outcome onto the entity.
func (ride *Ride) Accept(driverID, cartID string, at time.Time) error {
	if ride.DriverID != nil {
		return ErrAlreadyAssigned
	}
	if ride.Status != StatusRequested {
		return ErrNoLongerAvailable
	}
	ride.DriverID = &driverID
	ride.CartID = &cartID
	at = at.UTC()
	ride.AcceptedAt = &at
	ride.setStatus(StatusAccepted)
	return nil
}

// ApplyTransition moves the ride along a validated edge and stamps the
// timestamp owned by the target status. Acceptance is excluded: binding a
// driver goes through Accept so the driver/cart invariant cannot be skipped.
func (ride *Ride) ApplyTransition(target Status) error {
	if target == StatusAccepted {
		return ErrInvalidTransition
	}
	if !ride.Status.CanTransitionTo(target) {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	switch target {
	case StatusInProgress:
		if ride.DriverID == nil {
			return ErrNoDriverAssigned
		}
		ride.PickedUpAt = &now
	case StatusCompleted:
		ride.DroppedOffAt = &now
	case StatusCancelled:
		ride.CancelledAt = &now
	}
	ride.setStatus(target)
	return nil
}

// Cancel is ApplyTransition to cancelled plus the audit reason.
func (ride *Ride) Cancel(reason string) error {
	if err := ride.ApplyTransition(StatusCancelled); err != nil {
		return err
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		ride.CancelReason = &reason
	}
	return nil
}

// Active reports whether the ride occupies its driver (accepted or underway).
func (ride *Ride) Active() bool {
	return ride.Status == StatusAccepted || ride.Status == StatusInProgress
}

func (ride *Ride) setStatus(status Status) {
	ride.Status = status
	ride.touch()
}

func (ride *Ride) touch() {
	ride.UpdatedAt = time.Now().UTC()
}
