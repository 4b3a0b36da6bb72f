// Package memory provides a mutex-guarded in-memory implementation of every
// repository port. It backs the service tests and local development; each
// method is individually atomic, while cross-entity atomicity in production
// comes from the postgres unit of work.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"campuscart/internal/domain/cart"
	"campuscart/internal/domain/chat"
	"campuscart/internal/domain/ride"
	"campuscart/internal/domain/user"
	"campuscart/internal/ports"
)

// Store keeps every entity behind one mutex and hands out repository views.
type Store struct {
	mu sync.Mutex

	rides   map[string]*ride.Ride
	carts   map[string]*cart.Cart
	users   map[string]*user.User
	threads map[string]*chat.Thread

	events      []ride.Event
	nextEventID int64

	positions map[string]ports.DriverPosition
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		rides:       make(map[string]*ride.Ride),
		carts:       make(map[string]*cart.Cart),
		users:       make(map[string]*user.User),
		threads:     make(map[string]*chat.Thread),
		nextEventID: 1,
		positions:   make(map[string]ports.DriverPosition),
	}
}

// WithinTx runs fn directly; the store has no transactions.
func (store *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (store *Store) Rides() ports.RideRepository           { return rideRepo{store} }
func (store *Store) RideEvents() ports.RideEventRepository { return eventRepo{store} }
func (store *Store) Carts() ports.CartRepository           { return cartRepo{store} }
func (store *Store) Users() ports.UserRepository           { return userRepo{store} }
func (store *Store) Threads() ports.ThreadRepository       { return threadRepo{store} }
func (store *Store) Presence() ports.PresenceStore         { return presenceRepo{store} }

// --- rides ---

type rideRepo struct{ store *Store }

func (repo rideRepo) Create(ctx context.Context, r *ride.Ride) error {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	repo.store.rides[r.ID] = cloneRide(r)
	return nil
}

func (repo rideRepo) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	r, ok := repo.store.rides[id]
	if !ok {
		return nil, ride.ErrNotFound
	}
	return cloneRide(r), nil
}

func (repo rideRepo) List(ctx context.Context, filter ports.RideFilter) ([]*ride.Ride, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()

	out := make([]*ride.Ride, 0, len(repo.store.rides))
	for _, r := range repo.store.rides {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.RiderID != "" && r.RiderID != filter.RiderID {
			continue
		}
		if filter.DriverID != "" && (r.DriverID == nil || *r.DriverID != filter.DriverID) {
			continue
		}
		out = append(out, cloneRide(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (repo rideRepo) ActiveForDriver(ctx context.Context, driverID string) (*ride.Ride, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	for _, r := range repo.store.rides {
		if r.DriverID != nil && *r.DriverID == driverID && r.Active() {
			return cloneRide(r), nil
		}
	}
	return nil, ride.ErrNotFound
}

func (repo rideRepo) AcceptRequested(ctx context.Context, rideID, driverID, cartID string, at time.Time) (bool, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()

	r, ok := repo.store.rides[rideID]
	if !ok {
		return false, ride.ErrNotFound
	}
	if err := r.Accept(driverID, cartID, at); err != nil {
		return false, nil
	}
	return true, nil
}

func (repo rideRepo) SaveStatus(ctx context.Context, r *ride.Ride) error {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	if _, ok := repo.store.rides[r.ID]; !ok {
		return ride.ErrNotFound
	}
	repo.store.rides[r.ID] = cloneRide(r)
	return nil
}

// --- ride events ---

type eventRepo struct{ store *Store }

func (repo eventRepo) Append(ctx context.Context, e *ride.Event) error {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	e.ID = repo.store.nextEventID
	repo.store.nextEventID++
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	repo.store.events = append(repo.store.events, *e)
	return nil
}

func (repo eventRepo) ListForRide(ctx context.Context, rideID string) ([]ride.Event, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	var out []ride.Event
	for _, e := range repo.store.events {
		if e.RideID == rideID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- carts ---

type cartRepo struct{ store *Store }

func (repo cartRepo) Create(ctx context.Context, c *cart.Cart) error {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	for _, existing := range repo.store.carts {
		if existing.Number == c.Number {
			return cart.ErrDuplicateNumber
		}
	}
	repo.store.carts[c.ID] = cloneCart(c)
	return nil
}

func (repo cartRepo) GetByID(ctx context.Context, id string) (*cart.Cart, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	c, ok := repo.store.carts[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return cloneCart(c), nil
}

func (repo cartRepo) List(ctx context.Context, status *cart.Status) ([]*cart.Cart, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	out := make([]*cart.Cart, 0, len(repo.store.carts))
	for _, c := range repo.store.carts {
		if status != nil && c.Status != *status {
			continue
		}
		out = append(out, cloneCart(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (repo cartRepo) Save(ctx context.Context, c *cart.Cart) error {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	if _, ok := repo.store.carts[c.ID]; !ok {
		return cart.ErrNotFound
	}
	repo.store.carts[c.ID] = cloneCart(c)
	return nil
}

// --- users ---

type userRepo struct{ store *Store }

func (repo userRepo) Create(ctx context.Context, u *user.User) error {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	repo.store.users[u.ID] = cloneUser(u)
	return nil
}

func (repo userRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	u, ok := repo.store.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return cloneUser(u), nil
}

func (repo userRepo) ListDrivers(ctx context.Context, onDutyOnly bool) ([]*user.User, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	var out []*user.User
	for _, u := range repo.store.users {
		if u.Role != user.RoleDriver {
			continue
		}
		if onDutyOnly && !u.IsOnDuty {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (repo userRepo) ListByRoles(ctx context.Context, roles ...user.Role) ([]*user.User, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	var out []*user.User
	for _, u := range repo.store.users {
		if slices.Contains(roles, u.Role) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (repo userRepo) Save(ctx context.Context, u *user.User) error {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	if _, ok := repo.store.users[u.ID]; !ok {
		return user.ErrNotFound
	}
	repo.store.users[u.ID] = cloneUser(u)
	return nil
}

// --- threads ---

type threadRepo struct{ store *Store }

func (repo threadRepo) Create(ctx context.Context, t *chat.Thread) error {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	repo.store.threads[t.ID] = cloneThread(t)
	return nil
}

func (repo threadRepo) GetByID(ctx context.Context, id string) (*chat.Thread, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	t, ok := repo.store.threads[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return cloneThread(t), nil
}

func (repo threadRepo) GetByRide(ctx context.Context, rideID string) (*chat.Thread, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	for _, t := range repo.store.threads {
		if t.RideID != nil && *t.RideID == rideID {
			return cloneThread(t), nil
		}
	}
	return nil, chat.ErrNotFound
}

func (repo threadRepo) GetSingleton(ctx context.Context, kind chat.Kind) (*chat.Thread, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	for _, t := range repo.store.threads {
		if t.Kind == kind {
			return cloneThread(t), nil
		}
	}
	return nil, chat.ErrNotFound
}

func (repo threadRepo) FindPrivate(ctx context.Context, a, b string) (*chat.Thread, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	for _, t := range repo.store.threads {
		if t.Kind != chat.KindPrivate || len(t.Participants) != 2 {
			continue
		}
		if t.HasParticipant(a) && t.HasParticipant(b) {
			return cloneThread(t), nil
		}
	}
	return nil, chat.ErrNotFound
}

func (repo threadRepo) ListForUser(ctx context.Context, userID string) ([]*chat.Thread, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	var out []*chat.Thread
	for _, t := range repo.store.threads {
		if t.HasParticipant(userID) {
			out = append(out, cloneThread(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (repo threadRepo) AddParticipant(ctx context.Context, threadID, userID string) error {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	t, ok := repo.store.threads[threadID]
	if !ok {
		return chat.ErrNotFound
	}
	t.AddParticipant(userID)
	return nil
}

func (repo threadRepo) AppendMessage(ctx context.Context, threadID string, msg chat.Message) error {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	t, ok := repo.store.threads[threadID]
	if !ok {
		return chat.ErrNotFound
	}
	t.Messages = append(t.Messages, msg)
	if msg.SentAt.After(t.LastActivity) {
		t.LastActivity = msg.SentAt
	}
	return nil
}

func (repo threadRepo) MarkRead(ctx context.Context, threadID, readerID string) (int, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	t, ok := repo.store.threads[threadID]
	if !ok {
		return 0, chat.ErrNotFound
	}
	return t.MarkRead(readerID), nil
}

// --- presence ---

type presenceRepo struct{ store *Store }

func (repo presenceRepo) UpdateLocation(ctx context.Context, pos ports.DriverPosition) error {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	repo.store.positions[pos.DriverID] = pos
	return nil
}

func (repo presenceRepo) Location(ctx context.Context, driverID string) (*ports.DriverPosition, error) {
	repo.store.mu.Lock()
	defer repo.store.mu.Unlock()
	pos, ok := repo.store.positions[driverID]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &pos, nil
}

// --- clone helpers; callers never share pointers with the store ---

func cloneRide(r *ride.Ride) *ride.Ride {
	c := *r
	c.DriverID = clonePtr(r.DriverID)
	c.CartID = clonePtr(r.CartID)
	c.AcceptedAt = clonePtr(r.AcceptedAt)
	c.PickedUpAt = clonePtr(r.PickedUpAt)
	c.DroppedOffAt = clonePtr(r.DroppedOffAt)
	c.CancelledAt = clonePtr(r.CancelledAt)
	c.CancelReason = clonePtr(r.CancelReason)
	c.DistanceKM = clonePtr(r.DistanceKM)
	c.DurationMinutes = clonePtr(r.DurationMinutes)
	return &c
}

func cloneCart(c *cart.Cart) *cart.Cart {
	out := *c
	out.CurrentDriverID = clonePtr(c.CurrentDriverID)
	out.LastMaintenance = clonePtr(c.LastMaintenance)
	return &out
}

func cloneUser(u *user.User) *user.User {
	out := *u
	out.AssignedCartID = clonePtr(u.AssignedCartID)
	return &out
}

func cloneThread(t *chat.Thread) *chat.Thread {
	out := *t
	out.Participants = slices.Clone(t.Participants)
	out.Messages = slices.Clone(t.Messages)
	out.RideID = clonePtr(t.RideID)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
