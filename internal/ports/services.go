package ports

import (
	"context"
	"errors"

	"campuscart/internal/domain/cart"
	"campuscart/internal/domain/chat"
	"campuscart/internal/domain/ride"
	"campuscart/internal/domain/user"
)

var (
	// ErrUnavailable wraps infrastructure failures (database down, broker
	// unreachable) so handlers can map them to 503 without inspecting
	// driver errors.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrForbidden marks operations the actor's role or identity does not
	// permit.
	ErrForbidden = errors.New("operation not permitted")
)

// CreateRideInput carries everything a rider submits for a new ride.
type CreateRideInput struct {
	RiderID        string
	PickupAddress  string
	PickupLat      float64
	PickupLng      float64
	DropoffAddress string
	DropoffLat     float64
	DropoffLng     float64
	Notes          string
}

// TransitionInput identifies who is moving which ride to which status.
type TransitionInput struct {
	RideID    string
	ActorID   string
	ActorRole user.Role
	Target    ride.Status
	Reason    string // cancellation audit text, ignored otherwise
}

// RideService coordinates the ride lifecycle and the accept race.
type RideService interface {
	Create(ctx context.Context, in CreateRideInput) (*ride.Ride, error)

	// Accept resolves the multi-driver race: exactly one caller per ride
	// wins; losers get ride.ErrNoLongerAvailable and no side effects.
	Accept(ctx context.Context, rideID, driverID string) (*ride.Ride, error)

	Transition(ctx context.Context, in TransitionInput) (*ride.Ride, error)
	Cancel(ctx context.Context, rideID, actorID string, role user.Role, reason string) (*ride.Ride, error)
	Get(ctx context.Context, rideID, actorID string, role user.Role) (*ride.Ride, error)
	List(ctx context.Context, actorID string, role user.Role, status *ride.Status) ([]*ride.Ride, error)
	History(ctx context.Context, rideID, actorID string, role user.Role) ([]ride.Event, error)
}

// RegisterCartInput carries dispatcher input for a new cart.
type RegisterCartInput struct {
	Number      string
	Description string
}

// FleetService manages carts, driver duty, and the cart<->driver binding.
type FleetService interface {
	RegisterCart(ctx context.Context, in RegisterCartInput) (*cart.Cart, error)
	UpdateCart(ctx context.Context, cartID string, in RegisterCartInput) (*cart.Cart, error)
	SetCartStatus(ctx context.Context, cartID string, status cart.Status) (*cart.Cart, error)
	GetCart(ctx context.Context, cartID string) (*cart.Cart, error)
	ListCarts(ctx context.Context, status *cart.Status) ([]*cart.Cart, error)

	// AssignCart binds a cart to a driver, releasing any cart the driver
	// already held. Both sides update atomically.
	AssignCart(ctx context.Context, cartID, driverID string) error
	UnassignCart(ctx context.Context, cartID, actorID string, role user.Role) error

	SetDuty(ctx context.Context, driverID string, onDuty bool) (*user.User, error)
	ListDrivers(ctx context.Context, onDutyOnly bool) ([]*user.User, error)
}

// ChatService provisions and serves message threads.
type ChatService interface {
	// DriverGroupThread returns the fleet-wide group thread, creating it on
	// first use and admitting the caller if not yet a participant. Riders
	// are refused.
	DriverGroupThread(ctx context.Context, actorID string, role user.Role) (*chat.Thread, error)

	// PrivateThread finds or creates the one-to-one thread between the
	// caller and recipient.
	PrivateThread(ctx context.Context, actorID, recipientID string) (*chat.Thread, error)

	ListThreads(ctx context.Context, actorID string) ([]*chat.Thread, error)
	GetThread(ctx context.Context, threadID, actorID string) (*chat.Thread, error)
	Post(ctx context.Context, threadID, senderID, body string) (*chat.Message, error)
	MarkRead(ctx context.Context, threadID, readerID string) (int, error)
}
