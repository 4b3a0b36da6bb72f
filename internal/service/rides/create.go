package rides

import (
	"context"

	"github.com/google/uuid"

	"campuscart/internal/domain/chat"
	"campuscart/internal/domain/ride"
	"campuscart/internal/domain/user"
	"campuscart/internal/events"
	"campuscart/internal/general/contracts"
	"campuscart/internal/ports"
)

// Create validates the request, persists the ride together with its chat
// thread and the first audit event, then announces it.
func (service *Service) Create(ctx context.Context, in ports.CreateRideInput) (*ride.Ride, error) {
	pickup, err := ride.NewLocation(in.PickupAddress, in.PickupLat, in.PickupLng)
	if err != nil {
		return nil, err
	}
	dropoff, err := ride.NewLocation(in.DropoffAddress, in.DropoffLat, in.DropoffLng)
	if err != nil {
		return nil, err
	}

	newRide, err := ride.NewRide(uuid.NewString(), in.RiderID, pickup, dropoff, in.Notes)
	if err != nil {
		return nil, err
	}

	thread, err := chat.NewThread(uuid.NewString(), chat.KindRide, []string{newRide.RiderID}, newRide.ID)
	if err != nil {
		return nil, err
	}

	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		if err := service.rides.Create(ctx, newRide); err != nil {
			return err
		}
		if err := service.threads.Create(ctx, thread); err != nil {
			return err
		}
		return service.audit.Append(ctx, &ride.Event{
			RideID:    newRide.ID,
			ToStatus:  ride.StatusRequested,
			ActorRole: user.RoleRider,
			ActorID:   &newRide.RiderID,
		})
	})
	if err != nil {
		service.log.Error(ctx, "ride_request_failed", "could not persist ride", err, nil)
		return nil, err
	}

	service.stats.RideTransitions.WithLabelValues(ride.StatusRequested.String()).Inc()
	service.bus.Publish(events.Event{
		Kind:   events.KindRideRequested,
		RideID: newRide.ID,
		Payload: contracts.RideRequestedMessage{
			RideID:          newRide.ID,
			RiderID:         newRide.RiderID,
			Pickup:          geoPoint(newRide.Pickup),
			Dropoff:         geoPoint(newRide.Dropoff),
			Notes:           newRide.Notes,
			DistanceKM:      deref(newRide.DistanceKM),
			DurationMinutes: deref(newRide.DurationMinutes),
		},
	})
	service.log.Info(service.log.WithRideID(ctx, newRide.ID), "ride_requested", "ride created", map[string]any{
		"rider_id":    newRide.RiderID,
		"distance_km": deref(newRide.DistanceKM),
	})
	return newRide, nil
}

func geoPoint(loc ride.Location) contracts.GeoPoint {
	return contracts.GeoPoint{Lat: loc.Latitude, Lng: loc.Longitude, Address: loc.Address}
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
