package rides

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"campuscart/internal/domain/ride"
	"campuscart/internal/domain/user"
	"campuscart/internal/events"
	"campuscart/internal/general/logger"
	"campuscart/internal/general/memory"
	"campuscart/internal/general/metrics"
	"campuscart/internal/ports"
)

func newTestService(t *testing.T) (*Service, *memory.Store, *events.Bus) {
	t.Helper()
	store := memory.NewStore()
	bus := events.NewBus()
	svc := New(
		logger.New("rides-test"),
		store,
		store.Rides(),
		store.RideEvents(),
		store.Users(),
		store.Threads(),
		bus,
		metrics.New(),
	)
	return svc, store, bus
}

func seedRider(t *testing.T, store *memory.Store, id string) *user.User {
	t.Helper()
	u, err := user.NewUser(id, "Test", "Rider", id+"@campus.edu", "", user.RoleRider)
	if err != nil {
		t.Fatalf("new rider: %v", err)
	}
	if err := store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("seed rider: %v", err)
	}
	return u
}

func seedDriver(t *testing.T, store *memory.Store, id string, onDuty bool, cartID string) *user.User {
	t.Helper()
	u, err := user.NewUser(id, "Test", "Driver", id+"@campus.edu", "", user.RoleDriver)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	if err := u.SetDuty(onDuty); err != nil {
		t.Fatalf("set duty: %v", err)
	}
	if cartID != "" {
		if err := u.AssignCart(cartID); err != nil {
			t.Fatalf("assign cart: %v", err)
		}
	}
	if err := store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("seed driver: %v", err)
	}
	return u
}

func createRide(t *testing.T, svc *Service, riderID string) *ride.Ride {
	t.Helper()
	r, err := svc.Create(context.Background(), ports.CreateRideInput{
		RiderID:        riderID,
		PickupAddress:  "Library",
		PickupLat:      40.0015,
		PickupLng:      -83.0150,
		DropoffAddress: "Stadium",
		DropoffLat:     40.0075,
		DropoffLng:     -83.0250,
	})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return r
}

func TestCreateProvisionsThreadAndAudit(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedRider(t, store, "rider-1")

	r := createRide(t, svc, "rider-1")

	if r.Status != ride.StatusRequested {
		t.Fatalf("status = %s, want requested", r.Status)
	}
	if r.DistanceKM == nil || *r.DistanceKM <= 0 {
		t.Error("distance not estimated")
	}
	if r.DurationMinutes == nil || *r.DurationMinutes < 1 {
		t.Error("duration not estimated")
	}

	thread, err := store.Threads().GetByRide(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("ride thread not provisioned: %v", err)
	}
	if !thread.HasParticipant("rider-1") {
		t.Error("rider not a thread participant")
	}

	trail, err := store.RideEvents().ListForRide(context.Background(), r.ID)
	if err != nil || len(trail) != 1 {
		t.Fatalf("audit trail = %v (err %v), want one event", trail, err)
	}
	if trail[0].ToStatus != ride.StatusRequested {
		t.Errorf("audit event to = %s, want requested", trail[0].ToStatus)
	}
}

func TestCreateRejectsIdenticalEndpoints(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedRider(t, store, "rider-1")

	_, err := svc.Create(context.Background(), ports.CreateRideInput{
		RiderID:        "rider-1",
		PickupAddress:  "Library",
		PickupLat:      40.0015,
		PickupLng:      -83.0150,
		DropoffAddress: "Library front door",
		DropoffLat:     40.0015,
		DropoffLng:     -83.0150,
	})
	if !errors.Is(err, ride.ErrInvalidLocations) {
		t.Fatalf("err = %v, want ErrInvalidLocations", err)
	}
}

func TestAcceptPreconditions(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedRider(t, store, "rider-1")
	r := createRide(t, svc, "rider-1")

	seedDriver(t, store, "off-duty", false, "cart-1")
	seedDriver(t, store, "no-cart", true, "")
	seedRider(t, store, "not-a-driver")

	tests := []struct {
		name     string
		driverID string
		want     error
	}{
		{"off duty driver", "off-duty", user.ErrOffDuty},
		{"driver without cart", "no-cart", user.ErrNoAssignedCart},
		{"rider cannot accept", "not-a-driver", user.ErrNotADriver},
		{"unknown driver", "ghost", user.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Accept(context.Background(), r.ID, tt.driverID); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	// none of the failed attempts touched the ride
	fresh, err := store.Rides().GetByID(context.Background(), r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Status != ride.StatusRequested || fresh.DriverID != nil {
		t.Errorf("failed accepts mutated the ride: %+v", fresh)
	}
}

func TestAcceptBindsDriverCartAndThread(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedRider(t, store, "rider-1")
	seedDriver(t, store, "driver-1", true, "cart-1")
	r := createRide(t, svc, "rider-1")

	accepted, err := svc.Accept(context.Background(), r.ID, "driver-1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != ride.StatusAccepted {
		t.Errorf("status = %s, want accepted", accepted.Status)
	}
	if accepted.DriverID == nil || *accepted.DriverID != "driver-1" {
		t.Error("driver not bound")
	}
	if accepted.CartID == nil || *accepted.CartID != "cart-1" {
		t.Error("cart not bound")
	}
	if accepted.AcceptedAt == nil {
		t.Error("acceptedAt not stamped")
	}

	thread, err := store.Threads().GetByRide(context.Background(), r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !thread.HasParticipant("driver-1") {
		t.Error("driver not admitted to ride thread")
	}
}

func TestAcceptRejectsDriverWithActiveRide(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedRider(t, store, "rider-1")
	seedRider(t, store, "rider-2")
	seedDriver(t, store, "driver-1", true, "cart-1")

	first := createRide(t, svc, "rider-1")
	second := createRide(t, svc, "rider-2")

	if _, err := svc.Accept(context.Background(), first.ID, "driver-1"); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if _, err := svc.Accept(context.Background(), second.ID, "driver-1"); !errors.Is(err, user.ErrActiveRide) {
		t.Fatalf("err = %v, want ErrActiveRide", err)
	}
}

func TestAcceptAfterCancelIsNoLongerAvailable(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedRider(t, store, "rider-1")
	seedDriver(t, store, "driver-1", true, "cart-1")
	r := createRide(t, svc, "rider-1")

	if _, err := svc.Cancel(context.Background(), r.ID, "rider-1", user.RoleRider, "changed my mind"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Accept(context.Background(), r.ID, "driver-1"); !errors.Is(err, ride.ErrNoLongerAvailable) {
		t.Fatalf("err = %v, want ErrNoLongerAvailable", err)
	}

	fresh, _ := store.Rides().GetByID(context.Background(), r.ID)
	if fresh.DriverID != nil {
		t.Error("losing accept left a driver binding")
	}
}

func TestTransitionHappyPath(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedRider(t, store, "rider-1")
	seedDriver(t, store, "driver-1", true, "cart-1")
	r := createRide(t, svc, "rider-1")

	if _, err := svc.Accept(context.Background(), r.ID, "driver-1"); err != nil {
		t.Fatal(err)
	}

	underway, err := svc.Transition(context.Background(), ports.TransitionInput{
		RideID: r.ID, ActorID: "driver-1", ActorRole: user.RoleDriver, Target: ride.StatusInProgress,
	})
	if err != nil {
		t.Fatalf("start ride: %v", err)
	}
	if underway.PickedUpAt == nil {
		t.Error("pickedUpAt not stamped")
	}

	done, err := svc.Transition(context.Background(), ports.TransitionInput{
		RideID: r.ID, ActorID: "driver-1", ActorRole: user.RoleDriver, Target: ride.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("complete ride: %v", err)
	}
	if done.DroppedOffAt == nil {
		t.Error("droppedOffAt not stamped")
	}

	trail, _ := store.RideEvents().ListForRide(context.Background(), r.ID)
	if len(trail) != 4 { // requested, accepted, in_progress, completed
		t.Errorf("audit trail length = %d, want 4", len(trail))
	}
}

func TestTransitionAuthz(t *testing.T) {
	tests := []struct {
		name    string
		actorID string
		role    user.Role
		target  ride.Status
		want    error
	}{
		{"rider cannot start the ride", "rider-1", user.RoleRider, ride.StatusInProgress, ride.ErrForbidden},
		{"rider cannot complete", "rider-1", user.RoleRider, ride.StatusCompleted, ride.ErrInvalidTransition},
		{"stranger rider cannot cancel", "rider-2", user.RoleRider, ride.StatusCancelled, ride.ErrForbidden},
		{"other driver cannot start", "driver-2", user.RoleDriver, ride.StatusInProgress, ride.ErrForbidden},
		{"nobody transitions to accepted", "dispatch-1", user.RoleDispatcher, ride.StatusAccepted, ride.ErrInvalidTransition},
		{"rider may cancel own accepted ride", "rider-1", user.RoleRider, ride.StatusCancelled, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestService(t)
			seedRider(t, store, "rider-1")
			seedDriver(t, store, "driver-1", true, "cart-1")
			seedDriver(t, store, "driver-2", true, "cart-2")
			r := createRide(t, svc, "rider-1")
			if _, err := svc.Accept(context.Background(), r.ID, "driver-1"); err != nil {
				t.Fatal(err)
			}

			_, err := svc.Transition(context.Background(), ports.TransitionInput{
				RideID: r.ID, ActorID: tt.actorID, ActorRole: tt.role, Target: tt.target,
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCancelUnderwayRideIsInvalidForEveryone(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedRider(t, store, "rider-1")
	seedDriver(t, store, "driver-1", true, "cart-1")
	r := createRide(t, svc, "rider-1")
	if _, err := svc.Accept(context.Background(), r.ID, "driver-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Transition(context.Background(), ports.TransitionInput{
		RideID: r.ID, ActorID: "driver-1", ActorRole: user.RoleDriver, Target: ride.StatusInProgress,
	}); err != nil {
		t.Fatal(err)
	}

	for _, role := range []user.Role{user.RoleRider, user.RoleDriver, user.RoleDispatcher} {
		actor := map[user.Role]string{
			user.RoleRider: "rider-1", user.RoleDriver: "driver-1", user.RoleDispatcher: "dispatch-1",
		}[role]
		if _, err := svc.Cancel(context.Background(), r.ID, actor, role, "emergency"); !errors.Is(err, ride.ErrInvalidTransition) {
			t.Errorf("role %s: err = %v, want ErrInvalidTransition", role, err)
		}
	}
}

func TestCancelRecordsReason(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedRider(t, store, "rider-1")
	r := createRide(t, svc, "rider-1")

	cancelled, err := svc.Cancel(context.Background(), r.ID, "rider-1", user.RoleRider, "rain stopped")
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.CancelReason == nil || *cancelled.CancelReason != "rain stopped" {
		t.Errorf("cancel reason = %v", cancelled.CancelReason)
	}

	trail, _ := store.RideEvents().ListForRide(context.Background(), r.ID)
	last := trail[len(trail)-1]
	if last.Reason == nil || *last.Reason != "rain stopped" {
		t.Errorf("audit reason = %v", last.Reason)
	}
}

func TestListScopesByRole(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedRider(t, store, "rider-1")
	seedRider(t, store, "rider-2")
	seedDriver(t, store, "driver-1", true, "cart-1")

	mine := createRide(t, svc, "rider-1")
	other := createRide(t, svc, "rider-2")
	if _, err := svc.Accept(context.Background(), other.ID, "driver-1"); err != nil {
		t.Fatal(err)
	}

	riderRides, err := svc.List(context.Background(), "rider-1", user.RoleRider, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(riderRides) != 1 || riderRides[0].ID != mine.ID {
		t.Errorf("rider sees %d rides, want only their own", len(riderRides))
	}

	requested := ride.StatusRequested
	pool, err := svc.List(context.Background(), "driver-1", user.RoleDriver, &requested)
	if err != nil {
		t.Fatal(err)
	}
	if len(pool) != 1 || pool[0].ID != mine.ID {
		t.Errorf("driver pool = %d rides, want the open request", len(pool))
	}

	ownRides, err := svc.List(context.Background(), "driver-1", user.RoleDriver, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ownRides) != 1 || ownRides[0].ID != other.ID {
		t.Errorf("driver own list = %d rides, want the accepted one", len(ownRides))
	}

	all, err := svc.List(context.Background(), "dispatch-1", user.RoleDispatcher, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("dispatcher sees %d rides, want 2", len(all))
	}
}

func TestGetVisibility(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedRider(t, store, "rider-1")
	seedRider(t, store, "rider-2")
	seedDriver(t, store, "driver-1", true, "cart-1")
	r := createRide(t, svc, "rider-1")
	if _, err := svc.Accept(context.Background(), r.ID, "driver-1"); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Get(context.Background(), r.ID, "rider-2", user.RoleRider); !errors.Is(err, ride.ErrForbidden) {
		t.Errorf("stranger rider: err = %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(context.Background(), r.ID, "rider-1", user.RoleRider); err != nil {
		t.Errorf("owner rider: %v", err)
	}
	if _, err := svc.Get(context.Background(), r.ID, "driver-1", user.RoleDriver); err != nil {
		t.Errorf("bound driver: %v", err)
	}
	if _, err := svc.Get(context.Background(), r.ID, "dispatch-1", user.RoleDispatcher); err != nil {
		t.Errorf("dispatcher: %v", err)
	}
}

func TestStatusEventsReachBusSubscribers(t *testing.T) {
	svc, store, bus := newTestService(t)
	ch, unsub := bus.Subscribe(8)
	defer unsub()

	seedRider(t, store, "rider-1")
	seedDriver(t, store, "driver-1", true, "cart-1")
	r := createRide(t, svc, "rider-1")
	if _, err := svc.Accept(context.Background(), r.ID, "driver-1"); err != nil {
		t.Fatal(err)
	}

	kinds := make(map[events.Kind]int)
	for i := 0; i < 2; i++ {
		select {
		case ev := <-ch:
			kinds[ev.Kind]++
			if ev.RideID != r.ID {
				t.Errorf("event ride id = %s", ev.RideID)
			}
		default:
			t.Fatalf("expected 2 buffered events, got %d", i)
		}
	}
	if kinds[events.KindRideRequested] != 1 || kinds[events.KindRideStatusChanged] != 1 {
		t.Errorf("event kinds = %v", kinds)
	}
}

func BenchmarkAcceptUncontended(b *testing.B) {
	store := memory.NewStore()
	bus := events.NewBus()
	svc := New(logger.New("bench"), store, store.Rides(), store.RideEvents(), store.Users(), store.Threads(), bus, metrics.New())

	ctx := context.Background()
	driver, _ := user.NewUser("driver-1", "Bench", "Driver", "bench@campus.edu", "", user.RoleDriver)
	_ = driver.SetDuty(true)
	_ = driver.AssignCart("cart-1")
	_ = store.Users().Create(ctx, driver)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		r, err := svc.Create(ctx, ports.CreateRideInput{
			RiderID:       fmt.Sprintf("rider-%d", i),
			PickupAddress: "A", PickupLat: 40, PickupLng: -83,
			DropoffAddress: "B", DropoffLat: 40.01, DropoffLng: -83.01,
		})
		if err != nil {
			b.Fatal(err)
		}
		b.StartTimer()

		if _, err := svc.Accept(ctx, r.ID, "driver-1"); err != nil {
			b.Fatal(err)
		}

		b.StopTimer()
		if _, err := svc.Transition(ctx, ports.TransitionInput{
			RideID: r.ID, ActorID: "driver-1", ActorRole: user.RoleDriver, Target: ride.StatusInProgress,
		}); err != nil {
			b.Fatal(err)
		}
		if _, err := svc.Transition(ctx, ports.TransitionInput{
			RideID: r.ID, ActorID: "driver-1", ActorRole: user.RoleDriver, Target: ride.StatusCompleted,
		}); err != nil {
			b.Fatal(err)
		}
		b.StartTimer()
	}
}
