package ports

import (
	"context"
	"time"

	"campuscart/internal/domain/cart"
	"campuscart/internal/domain/chat"
	"campuscart/internal/domain/ride"
	"campuscart/internal/domain/user"
)

// UnitOfWork manages transactional execution across repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RideFilter narrows List results. Zero value means "everything".
type RideFilter struct {
	Status   *ride.Status
	RiderID  string // rides requested by this rider
	DriverID string // rides bound to this driver
	Limit    int
}

// RideRepository defines the methods for managing ride data.
type RideRepository interface {
	Create(ctx context.Context, r *ride.Ride) error
	GetByID(ctx context.Context, id string) (*ride.Ride, error)
	List(ctx context.Context, filter RideFilter) ([]*ride.Ride, error)
	ActiveForDriver(ctx context.Context, driverID string) (*ride.Ride, error)

	// AcceptRequested performs the compare-and-swap that resolves the
	// multi-driver accept race: it binds driver+cart and moves the ride to
	// accepted only if the stored status is still requested. Returns false
	// (and no error) when the swap was lost.
	AcceptRequested(ctx context.Context, rideID, driverID, cartID string, at time.Time) (bool, error)

	// SaveStatus persists the status block (status, lifecycle timestamps,
	// cancellation reason) of an already-loaded entity.
	SaveStatus(ctx context.Context, r *ride.Ride) error
}

// RideEventRepository appends to the per-ride audit trail.
type RideEventRepository interface {
	Append(ctx context.Context, e *ride.Event) error
	ListForRide(ctx context.Context, rideID string) ([]ride.Event, error)
}

// CartRepository defines the methods for managing cart data.
type CartRepository interface {
	// Create fails with cart.ErrDuplicateNumber when the human-facing
	// number is already registered.
	Create(ctx context.Context, c *cart.Cart) error
	GetByID(ctx context.Context, id string) (*cart.Cart, error)
	List(ctx context.Context, status *cart.Status) ([]*cart.Cart, error)
	Save(ctx context.Context, c *cart.Cart) error
}

// UserRepository defines the methods for managing user data.
type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id string) (*user.User, error)
	ListDrivers(ctx context.Context, onDutyOnly bool) ([]*user.User, error)
	ListByRoles(ctx context.Context, roles ...user.Role) ([]*user.User, error)
	Save(ctx context.Context, u *user.User) error
}

// ThreadRepository defines the methods for managing chat threads.
type ThreadRepository interface {
	Create(ctx context.Context, t *chat.Thread) error
	GetByID(ctx context.Context, id string) (*chat.Thread, error)
	GetByRide(ctx context.Context, rideID string) (*chat.Thread, error)

	// GetSingleton returns the unique thread of the given kind (the driver
	// group), or chat.ErrNotFound when it has not been created yet.
	GetSingleton(ctx context.Context, kind chat.Kind) (*chat.Thread, error)

	// FindPrivate returns the private thread whose participant set is
	// exactly {a, b}, or chat.ErrNotFound.
	FindPrivate(ctx context.Context, a, b string) (*chat.Thread, error)

	ListForUser(ctx context.Context, userID string) ([]*chat.Thread, error)
	AddParticipant(ctx context.Context, threadID, userID string) error
	AppendMessage(ctx context.Context, threadID string, msg chat.Message) error

	// MarkRead flips read on messages not authored by readerID and returns
	// how many changed.
	MarkRead(ctx context.Context, threadID, readerID string) (int, error)
}

// DriverPosition is the last reported location of a driver.
type DriverPosition struct {
	DriverID   string
	Latitude   float64
	Longitude  float64
	ReportedAt time.Time
}

// PresenceStore caches last-known driver positions (Redis-backed in
// production). Location updates are opaque to the lifecycle core.
type PresenceStore interface {
	UpdateLocation(ctx context.Context, pos DriverPosition) error
	Location(ctx context.Context, driverID string) (*DriverPosition, error)
}
