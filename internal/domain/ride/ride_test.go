package ride

import (
	"errors"
	"testing"
	"time"
)

func mustLocation(t *testing.T, address string, lat, lng float64) Location {
	t.Helper()
	loc, err := NewLocation(address, lat, lng)
	if err != nil {
		t.Fatalf("NewLocation(%q): %v", address, err)
	}
	return loc
}

func newTestRide(t *testing.T) *Ride {
	t.Helper()
	pickup := mustLocation(t, "Library", 40.10051, -88.22724)
	dropoff := mustLocation(t, "Union", 40.10923, -88.22717)
	r, err := NewRide("ride-1", "rider-1", pickup, dropoff, "two passengers")
	if err != nil {
		t.Fatalf("NewRide: %v", err)
	}
	return r
}

func TestNewRideSameCoordinates(t *testing.T) {
	pickup := mustLocation(t, "North entrance", 40.1005, -88.2272)
	dropoff := mustLocation(t, "South entrance", 40.1005, -88.2272)

	if _, err := NewRide("ride-1", "rider-1", pickup, dropoff, ""); !errors.Is(err, ErrInvalidLocations) {
		t.Fatalf("got %v, want ErrInvalidLocations", err)
	}
}

func TestNewRideDefaults(t *testing.T) {
	r := newTestRide(t)

	if r.Status != StatusRequested {
		t.Errorf("status = %s, want requested", r.Status)
	}
	if r.RequestedAt.IsZero() {
		t.Error("requestedAt not stamped")
	}
	if r.DriverID != nil || r.CartID != nil {
		t.Error("driver/cart must be unset at creation")
	}
	if r.DistanceKM == nil || *r.DistanceKM <= 0 {
		t.Error("distance not estimated")
	}
}

func TestLifecycleTimestampOrder(t *testing.T) {
	r := newTestRide(t)

	if err := r.Accept("driver-1", "cart-1", time.Now()); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := r.ApplyTransition(StatusInProgress); err != nil {
		t.Fatalf("to in_progress: %v", err)
	}
	if err := r.ApplyTransition(StatusCompleted); err != nil {
		t.Fatalf("to completed: %v", err)
	}

	if r.AcceptedAt == nil || r.PickedUpAt == nil || r.DroppedOffAt == nil {
		t.Fatal("lifecycle timestamps missing")
	}
	if r.AcceptedAt.Before(r.RequestedAt) {
		t.Error("acceptedAt before requestedAt")
	}
	if r.PickedUpAt.Before(*r.AcceptedAt) {
		t.Error("pickedUpAt before acceptedAt")
	}
	if r.DroppedOffAt.Before(*r.PickedUpAt) {
		t.Error("droppedOffAt before pickedUpAt")
	}
}

func TestAcceptTwice(t *testing.T) {
	r := newTestRide(t)

	if err := r.Accept("driver-1", "cart-1", time.Now()); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if err := r.Accept("driver-2", "cart-2", time.Now()); !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("second accept: got %v, want ErrAlreadyAssigned", err)
	}
	if *r.DriverID != "driver-1" || *r.CartID != "cart-1" {
		t.Error("losing accept must not overwrite the winner's binding")
	}
}

func TestTransitionRejectsBadEdges(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*Ride)
		target Status
	}{
		{"requested to in_progress", func(r *Ride) {}, StatusInProgress},
		{"requested to completed", func(r *Ride) {}, StatusCompleted},
		{"transition to accepted bypassing accept", func(r *Ride) {}, StatusAccepted},
		{
			"cancel after completion",
			func(r *Ride) {
				_ = r.Accept("driver-1", "cart-1", time.Now())
				_ = r.ApplyTransition(StatusInProgress)
				_ = r.ApplyTransition(StatusCompleted)
			},
			StatusCancelled,
		},
		{
			"cancel while underway",
			func(r *Ride) {
				_ = r.Accept("driver-1", "cart-1", time.Now())
				_ = r.ApplyTransition(StatusInProgress)
			},
			StatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRide(t)
			tt.setup(r)
			before := r.Status
			if err := r.ApplyTransition(tt.target); !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("got %v, want ErrInvalidTransition", err)
			}
			if r.Status != before {
				t.Errorf("failed transition mutated status: %s -> %s", before, r.Status)
			}
		})
	}
}

func TestCancelStoresReason(t *testing.T) {
	r := newTestRide(t)
	if err := r.Cancel("rider changed plans"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if r.Status != StatusCancelled || r.CancelReason == nil || *r.CancelReason != "rider changed plans" {
		t.Errorf("cancel audit not recorded: %+v", r)
	}
	if r.CancelledAt == nil {
		t.Error("cancelledAt not stamped")
	}
}
