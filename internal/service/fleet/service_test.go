package fleet

import (
	"context"
	"errors"
	"testing"

	"campuscart/internal/domain/cart"
	"campuscart/internal/domain/ride"
	"campuscart/internal/domain/user"
	"campuscart/internal/general/logger"
	"campuscart/internal/general/memory"
	"campuscart/internal/ports"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := New(logger.New("fleet-test"), store, store.Carts(), store.Users(), store.Rides())
	return svc, store
}

func seedDriver(t *testing.T, store *memory.Store, id string) *user.User {
	t.Helper()
	u, err := user.NewUser(id, "Fleet", "Driver", id+"@campus.edu", "", user.RoleDriver)
	if err != nil {
		t.Fatal(err)
	}
	if err := u.SetDuty(true); err != nil {
		t.Fatal(err)
	}
	if err := store.Users().Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func registerCart(t *testing.T, svc *Service, number string) *cart.Cart {
	t.Helper()
	c, err := svc.RegisterCart(context.Background(), ports.RegisterCartInput{Number: number})
	if err != nil {
		t.Fatalf("register cart %s: %v", number, err)
	}
	return c
}

func TestRegisterCartRejectsDuplicateNumber(t *testing.T) {
	svc, _ := newTestService(t)
	registerCart(t, svc, "C-7")

	_, err := svc.RegisterCart(context.Background(), ports.RegisterCartInput{Number: "C-7"})
	if !errors.Is(err, cart.ErrDuplicateNumber) {
		t.Fatalf("err = %v, want ErrDuplicateNumber", err)
	}
}

func TestAssignCartKeepsBothSidesInSync(t *testing.T) {
	svc, store := newTestService(t)
	seedDriver(t, store, "driver-1")
	c := registerCart(t, svc, "C-1")

	if err := svc.AssignCart(context.Background(), c.ID, "driver-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	gotCart, _ := store.Carts().GetByID(context.Background(), c.ID)
	if gotCart.Status != cart.StatusInUse || gotCart.CurrentDriverID == nil || *gotCart.CurrentDriverID != "driver-1" {
		t.Errorf("cart side out of sync: %+v", gotCart)
	}
	gotDriver, _ := store.Users().GetByID(context.Background(), "driver-1")
	if gotDriver.AssignedCartID == nil || *gotDriver.AssignedCartID != c.ID {
		t.Errorf("driver side out of sync: %v", gotDriver.AssignedCartID)
	}
}

func TestAssignCartReleasesPreviousCart(t *testing.T) {
	svc, store := newTestService(t)
	seedDriver(t, store, "driver-1")
	first := registerCart(t, svc, "C-1")
	second := registerCart(t, svc, "C-2")

	ctx := context.Background()
	if err := svc.AssignCart(ctx, first.ID, "driver-1"); err != nil {
		t.Fatal(err)
	}
	if err := svc.AssignCart(ctx, second.ID, "driver-1"); err != nil {
		t.Fatalf("reassign: %v", err)
	}

	old, _ := store.Carts().GetByID(ctx, first.ID)
	if old.Status != cart.StatusAvailable || old.CurrentDriverID != nil {
		t.Errorf("previous cart not released: %+v", old)
	}
	next, _ := store.Carts().GetByID(ctx, second.ID)
	if next.CurrentDriverID == nil || *next.CurrentDriverID != "driver-1" {
		t.Errorf("new cart not bound: %+v", next)
	}
	driver, _ := store.Users().GetByID(ctx, "driver-1")
	if driver.AssignedCartID == nil || *driver.AssignedCartID != second.ID {
		t.Errorf("driver back-reference = %v, want second cart", driver.AssignedCartID)
	}
}

func TestAssignCartToSameCartIsNoOp(t *testing.T) {
	svc, store := newTestService(t)
	seedDriver(t, store, "driver-1")
	c := registerCart(t, svc, "C-1")

	ctx := context.Background()
	if err := svc.AssignCart(ctx, c.ID, "driver-1"); err != nil {
		t.Fatal(err)
	}
	if err := svc.AssignCart(ctx, c.ID, "driver-1"); err != nil {
		t.Fatalf("re-assign same cart: %v", err)
	}
}

func TestAssignCartRefusals(t *testing.T) {
	svc, store := newTestService(t)
	seedDriver(t, store, "driver-1")
	seedDriver(t, store, "driver-2")
	rider, _ := user.NewUser("rider-1", "A", "Rider", "r@campus.edu", "", user.RoleRider)
	_ = store.Users().Create(context.Background(), rider)

	held := registerCart(t, svc, "C-1")
	broken := registerCart(t, svc, "C-2")

	ctx := context.Background()
	if err := svc.AssignCart(ctx, held.ID, "driver-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SetCartStatus(ctx, broken.ID, cart.StatusMaintenance); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		cartID   string
		driverID string
		want     error
	}{
		{"cart already in use", held.ID, "driver-2", cart.ErrNotAvailable},
		{"cart in maintenance", broken.ID, "driver-2", cart.ErrNotAvailable},
		{"not a driver", held.ID, "rider-1", user.ErrNotADriver},
		{"unknown cart", "ghost", "driver-2", cart.ErrNotFound},
		{"unknown driver", held.ID, "ghost", user.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.AssignCart(ctx, tt.cartID, tt.driverID); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMaintenanceForcesUnbind(t *testing.T) {
	svc, store := newTestService(t)
	seedDriver(t, store, "driver-1")
	c := registerCart(t, svc, "C-1")

	ctx := context.Background()
	if err := svc.AssignCart(ctx, c.ID, "driver-1"); err != nil {
		t.Fatal(err)
	}

	updated, err := svc.SetCartStatus(ctx, c.ID, cart.StatusMaintenance)
	if err != nil {
		t.Fatalf("maintenance: %v", err)
	}
	if updated.CurrentDriverID != nil {
		t.Error("cart still holds a driver")
	}
	if updated.LastMaintenance == nil {
		t.Error("lastMaintenance not stamped")
	}

	driver, _ := store.Users().GetByID(ctx, "driver-1")
	if driver.AssignedCartID != nil {
		t.Error("driver back-reference not cleared")
	}
}

func TestSetCartStatusNeverSetsInUse(t *testing.T) {
	svc, _ := newTestService(t)
	c := registerCart(t, svc, "C-1")

	if _, err := svc.SetCartStatus(context.Background(), c.ID, cart.StatusInUse); !errors.Is(err, cart.ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestUnassignCartAuthz(t *testing.T) {
	svc, store := newTestService(t)
	seedDriver(t, store, "driver-1")
	seedDriver(t, store, "driver-2")
	c := registerCart(t, svc, "C-1")

	ctx := context.Background()
	if err := svc.AssignCart(ctx, c.ID, "driver-1"); err != nil {
		t.Fatal(err)
	}

	if err := svc.UnassignCart(ctx, c.ID, "driver-2", user.RoleDriver); !errors.Is(err, ports.ErrForbidden) {
		t.Errorf("other driver: err = %v, want ErrForbidden", err)
	}
	if err := svc.UnassignCart(ctx, c.ID, "driver-1", user.RoleDriver); err != nil {
		t.Errorf("holder: %v", err)
	}
	// already free: idempotent for anyone
	if err := svc.UnassignCart(ctx, c.ID, "driver-2", user.RoleDriver); err != nil {
		t.Errorf("idempotent unassign: %v", err)
	}
}

func TestUnassignCartBlockedByActiveRide(t *testing.T) {
	svc, store := newTestService(t)
	seedDriver(t, store, "driver-1")
	c := registerCart(t, svc, "C-1")

	ctx := context.Background()
	if err := svc.AssignCart(ctx, c.ID, "driver-1"); err != nil {
		t.Fatal(err)
	}
	seedActiveRide(t, store, "driver-1", c.ID)

	if err := svc.UnassignCart(ctx, c.ID, "dispatch-1", user.RoleDispatcher); !errors.Is(err, user.ErrActiveRide) {
		t.Fatalf("err = %v, want ErrActiveRide", err)
	}
}

func TestSetDutyBlockedByActiveRide(t *testing.T) {
	svc, store := newTestService(t)
	seedDriver(t, store, "driver-1")
	c := registerCart(t, svc, "C-1")

	ctx := context.Background()
	if err := svc.AssignCart(ctx, c.ID, "driver-1"); err != nil {
		t.Fatal(err)
	}
	seedActiveRide(t, store, "driver-1", c.ID)

	if _, err := svc.SetDuty(ctx, "driver-1", false); !errors.Is(err, user.ErrActiveRide) {
		t.Fatalf("err = %v, want ErrActiveRide", err)
	}

	driver, _ := store.Users().GetByID(ctx, "driver-1")
	if !driver.IsOnDuty {
		t.Error("duty flag changed despite refusal")
	}
}

func TestListDriversDutyFilter(t *testing.T) {
	svc, store := newTestService(t)
	seedDriver(t, store, "driver-on")
	off := seedDriver(t, store, "driver-off")
	_ = off.SetDuty(false)
	_ = store.Users().Save(context.Background(), off)

	all, err := svc.ListDrivers(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("all drivers = %d, want 2", len(all))
	}

	onDuty, err := svc.ListDrivers(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(onDuty) != 1 || onDuty[0].ID != "driver-on" {
		t.Errorf("on-duty drivers = %v", onDuty)
	}
}

func seedActiveRide(t *testing.T, store *memory.Store, driverID, cartID string) {
	t.Helper()
	pickup, _ := ride.NewLocation("Library", 40.0, -83.0)
	dropoff, _ := ride.NewLocation("Stadium", 40.01, -83.01)
	r, err := ride.NewRide("ride-active", "rider-x", pickup, dropoff, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Rides().Create(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	won, err := store.Rides().AcceptRequested(context.Background(), r.ID, driverID, cartID, r.RequestedAt)
	if err != nil || !won {
		t.Fatalf("seed accept: won=%v err=%v", won, err)
	}
}
