package rides

import (
	"context"
	"errors"

	"campuscart/internal/domain/ride"
	"campuscart/internal/domain/user"
	"campuscart/internal/events"
	"campuscart/internal/general/contracts"
)

// Accept runs the assignment race. The driver must be on duty with an
// assigned cart and no active ride; the compare-and-swap on the ride's
// status column then decides the winner. Losers observe
// ride.ErrNoLongerAvailable and no state is touched for them.
func (service *Service) Accept(ctx context.Context, rideID, driverID string) (*ride.Ride, error) {
	ctx = service.log.WithRideID(ctx, rideID)

	driver, err := service.users.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !driver.Role.IsDriver() {
		service.stats.AcceptAttempts.WithLabelValues("rejected").Inc()
		return nil, user.ErrNotADriver
	}
	if !driver.IsOnDuty {
		service.stats.AcceptAttempts.WithLabelValues("rejected").Inc()
		return nil, user.ErrOffDuty
	}
	if driver.AssignedCartID == nil {
		service.stats.AcceptAttempts.WithLabelValues("rejected").Inc()
		return nil, user.ErrNoAssignedCart
	}
	if _, err := service.rides.ActiveForDriver(ctx, driverID); err == nil {
		service.stats.AcceptAttempts.WithLabelValues("rejected").Inc()
		return nil, user.ErrActiveRide
	} else if !errors.Is(err, ride.ErrNotFound) {
		return nil, err
	}

	cartID := *driver.AssignedCartID
	acceptedAt := service.now()

	var accepted *ride.Ride
	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		won, err := service.rides.AcceptRequested(ctx, rideID, driverID, cartID, acceptedAt)
		if err != nil {
			return err
		}
		if !won {
			return ride.ErrNoLongerAvailable
		}

		accepted, err = service.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}

		// admit the driver to the ride's chat thread
		thread, err := service.threads.GetByRide(ctx, rideID)
		if err != nil {
			return err
		}
		if err := service.threads.AddParticipant(ctx, thread.ID, driverID); err != nil {
			return err
		}

		return service.audit.Append(ctx, &ride.Event{
			RideID:     rideID,
			FromStatus: ride.StatusRequested,
			ToStatus:   ride.StatusAccepted,
			ActorRole:  user.RoleDriver,
			ActorID:    &driverID,
		})
	})
	if err != nil {
		if errors.Is(err, ride.ErrNoLongerAvailable) {
			service.stats.AcceptAttempts.WithLabelValues("lost").Inc()
			service.log.Info(ctx, "ride_accept_lost", "another driver won the ride", map[string]any{
				"driver_id": driverID,
			})
		}
		return nil, err
	}

	service.stats.AcceptAttempts.WithLabelValues("won").Inc()
	service.stats.RideTransitions.WithLabelValues(ride.StatusAccepted.String()).Inc()
	service.publishStatus(accepted, ride.StatusRequested, "")
	service.log.Info(ctx, "ride_accepted", "driver accepted the ride", map[string]any{
		"driver_id": driverID,
		"cart_id":   cartID,
	})
	return accepted, nil
}

func (service *Service) publishStatus(r *ride.Ride, from ride.Status, reason string) {
	msg := contracts.RideStatusMessage{
		RideID:     r.ID,
		RiderID:    r.RiderID,
		FromStatus: from.String(),
		ToStatus:   r.Status.String(),
		DriverID:   deref(r.DriverID),
		CartID:     deref(r.CartID),
		Reason:     reason,
		Timestamp:  r.UpdatedAt,
	}
	service.bus.Publish(events.Event{
		Kind:    events.KindRideStatusChanged,
		RideID:  r.ID,
		Payload: msg,
	})
}
