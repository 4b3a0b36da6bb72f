package rides

import (
	"context"

	"campuscart/internal/domain/ride"
	"campuscart/internal/domain/user"
	"campuscart/internal/ports"
)

// Get returns a single ride scoped to the caller: riders see their own
// rides, drivers see rides bound to them plus the open pool, dispatchers
// see everything.
func (service *Service) Get(ctx context.Context, rideID, actorID string, role user.Role) (*ride.Ride, error) {
	r, err := service.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !service.actorMayView(r, actorID, role) {
		return nil, ride.ErrForbidden
	}
	return r, nil
}

// List returns rides visible to the caller, optionally narrowed by status.
// A driver listing requested rides sees the open pool; otherwise drivers and
// riders only see rides they are part of.
func (service *Service) List(ctx context.Context, actorID string, role user.Role, status *ride.Status) ([]*ride.Ride, error) {
	filter := ports.RideFilter{Status: status}

	switch role {
	case user.RoleRider:
		filter.RiderID = actorID
	case user.RoleDriver:
		if status == nil || *status != ride.StatusRequested {
			filter.DriverID = actorID
		}
	case user.RoleDispatcher:
		// unrestricted
	default:
		return nil, ride.ErrForbidden
	}

	return service.rides.List(ctx, filter)
}

// History returns the ride's audit trail under the same visibility rule
// as Get.
func (service *Service) History(ctx context.Context, rideID, actorID string, role user.Role) ([]ride.Event, error) {
	r, err := service.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !service.actorMayView(r, actorID, role) {
		return nil, ride.ErrForbidden
	}
	return service.audit.ListForRide(ctx, rideID)
}

func (service *Service) actorMayView(r *ride.Ride, actorID string, role user.Role) bool {
	switch role {
	case user.RoleRider:
		return r.RiderID == actorID
	case user.RoleDriver:
		if r.Status == ride.StatusRequested {
			return true
		}
		return r.DriverID != nil && *r.DriverID == actorID
	case user.RoleDispatcher:
		return true
	default:
		return false
	}
}
