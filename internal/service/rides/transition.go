package rides

import (
	"context"

	"campuscart/internal/domain/ride"
	"campuscart/internal/domain/user"
	"campuscart/internal/ports"
)

// Transition moves a ride along one lifecycle edge. Validation order is
// fixed: the graph is checked before the capability table, so an impossible
// edge reports ErrInvalidTransition even to a dispatcher.
func (service *Service) Transition(ctx context.Context, in ports.TransitionInput) (*ride.Ride, error) {
	ctx = service.log.WithRideID(ctx, in.RideID)

	current, err := service.rides.GetByID(ctx, in.RideID)
	if err != nil {
		return nil, err
	}
	from := current.Status

	if in.Target == ride.StatusAccepted || !from.CanTransitionTo(in.Target) {
		return nil, ride.ErrInvalidTransition
	}
	if !ride.RoleAllows(in.ActorRole, from, in.Target) {
		return nil, ride.ErrForbidden
	}
	if !service.actorOwnsRide(current, in.ActorID, in.ActorRole) {
		return nil, ride.ErrForbidden
	}

	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		// re-read under the transaction so concurrent transitions serialize
		fresh, err := service.rides.GetByID(ctx, in.RideID)
		if err != nil {
			return err
		}
		if in.Target == ride.StatusCancelled {
			err = fresh.Cancel(in.Reason)
		} else {
			err = fresh.ApplyTransition(in.Target)
		}
		if err != nil {
			return err
		}
		if err := service.rides.SaveStatus(ctx, fresh); err != nil {
			return err
		}
		current = fresh

		event := &ride.Event{
			RideID:     fresh.ID,
			FromStatus: from,
			ToStatus:   in.Target,
			ActorRole:  in.ActorRole,
			ActorID:    &in.ActorID,
		}
		if fresh.CancelReason != nil {
			event.Reason = fresh.CancelReason
		}
		return service.audit.Append(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	service.stats.RideTransitions.WithLabelValues(in.Target.String()).Inc()
	service.publishStatus(current, from, in.Reason)
	service.log.Info(ctx, "ride_status_changed", "ride transitioned", map[string]any{
		"from":       from.String(),
		"to":         in.Target.String(),
		"actor_role": in.ActorRole.String(),
	})
	return current, nil
}

// Cancel is Transition to cancelled with an audit reason.
func (service *Service) Cancel(ctx context.Context, rideID, actorID string, role user.Role, reason string) (*ride.Ride, error) {
	return service.Transition(ctx, ports.TransitionInput{
		RideID:    rideID,
		ActorID:   actorID,
		ActorRole: role,
		Target:    ride.StatusCancelled,
		Reason:    reason,
	})
}

// actorOwnsRide scopes transitions to the ride's own actors. Dispatchers act
// on any ride.
func (service *Service) actorOwnsRide(r *ride.Ride, actorID string, role user.Role) bool {
	switch role {
	case user.RoleRider:
		return r.RiderID == actorID
	case user.RoleDriver:
		return r.DriverID != nil && *r.DriverID == actorID
	case user.RoleDispatcher:
		return true
	default:
		return false
	}
}
