package handler

import (
	"time"

	"campuscart/internal/domain/cart"
	"campuscart/internal/domain/chat"
	"campuscart/internal/domain/ride"
	"campuscart/internal/domain/user"
)

// Response DTOs. Domain entities stay JSON-free; the wire shape is owned
// here.

type locationView struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type rideView struct {
	ID              string       `json:"id"`
	RiderID         string       `json:"rider_id"`
	DriverID        *string      `json:"driver_id,omitempty"`
	CartID          *string      `json:"cart_id,omitempty"`
	Status          string       `json:"status"`
	Pickup          locationView `json:"pickup"`
	Dropoff         locationView `json:"dropoff"`
	Notes           string       `json:"notes,omitempty"`
	RequestedAt     time.Time    `json:"requested_at"`
	AcceptedAt      *time.Time   `json:"accepted_at,omitempty"`
	PickedUpAt      *time.Time   `json:"picked_up_at,omitempty"`
	DroppedOffAt    *time.Time   `json:"dropped_off_at,omitempty"`
	CancelledAt     *time.Time   `json:"cancelled_at,omitempty"`
	CancelReason    *string      `json:"cancel_reason,omitempty"`
	DistanceKM      *float64     `json:"distance_km,omitempty"`
	DurationMinutes *int         `json:"duration_minutes,omitempty"`
}

func toRideView(r *ride.Ride) rideView {
	return rideView{
		ID:              r.ID,
		RiderID:         r.RiderID,
		DriverID:        r.DriverID,
		CartID:          r.CartID,
		Status:          r.Status.String(),
		Pickup:          toLocationView(r.Pickup),
		Dropoff:         toLocationView(r.Dropoff),
		Notes:           r.Notes,
		RequestedAt:     r.RequestedAt,
		AcceptedAt:      r.AcceptedAt,
		PickedUpAt:      r.PickedUpAt,
		DroppedOffAt:    r.DroppedOffAt,
		CancelledAt:     r.CancelledAt,
		CancelReason:    r.CancelReason,
		DistanceKM:      r.DistanceKM,
		DurationMinutes: r.DurationMinutes,
	}
}

func toLocationView(loc ride.Location) locationView {
	return locationView{Address: loc.Address, Latitude: loc.Latitude, Longitude: loc.Longitude}
}

func toRideViews(rides []*ride.Ride) []rideView {
	views := make([]rideView, 0, len(rides))
	for _, r := range rides {
		views = append(views, toRideView(r))
	}
	return views
}

type rideEventView struct {
	ID         int64     `json:"id"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	ActorRole  string    `json:"actor_role"`
	ActorID    *string   `json:"actor_id,omitempty"`
	Reason     *string   `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toRideEventViews(evs []ride.Event) []rideEventView {
	views := make([]rideEventView, 0, len(evs))
	for _, ev := range evs {
		view := rideEventView{
			ID:        ev.ID,
			ToStatus:  ev.ToStatus.String(),
			ActorRole: ev.ActorRole.String(),
			ActorID:   ev.ActorID,
			Reason:    ev.Reason,
			CreatedAt: ev.CreatedAt,
		}
		if ev.FromStatus != "" {
			view.FromStatus = ev.FromStatus.String()
		}
		views = append(views, view)
	}
	return views
}

type cartView struct {
	ID              string     `json:"id"`
	Number          string     `json:"number"`
	Description     string     `json:"description,omitempty"`
	Status          string     `json:"status"`
	CurrentDriverID *string    `json:"current_driver_id,omitempty"`
	LastMaintenance *time.Time `json:"last_maintenance,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toCartView(c *cart.Cart) cartView {
	return cartView{
		ID:              c.ID,
		Number:          c.Number,
		Description:     c.Description,
		Status:          c.Status.String(),
		CurrentDriverID: c.CurrentDriverID,
		LastMaintenance: c.LastMaintenance,
		CreatedAt:       c.CreatedAt,
	}
}

func toCartViews(carts []*cart.Cart) []cartView {
	views := make([]cartView, 0, len(carts))
	for _, c := range carts {
		views = append(views, toCartView(c))
	}
	return views
}

type driverView struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	PhoneNumber    string  `json:"phone_number,omitempty"`
	IsOnDuty       bool    `json:"is_on_duty"`
	AssignedCartID *string `json:"assigned_cart_id,omitempty"`
}

func toDriverView(u *user.User) driverView {
	return driverView{
		ID:             u.ID,
		Name:           u.FullName(),
		Email:          u.Email,
		PhoneNumber:    u.PhoneNumber,
		IsOnDuty:       u.IsOnDuty,
		AssignedCartID: u.AssignedCartID,
	}
}

func toDriverViews(users []*user.User) []driverView {
	views := make([]driverView, 0, len(users))
	for _, u := range users {
		views = append(views, toDriverView(u))
	}
	return views
}

type messageView struct {
	ID       string    `json:"id"`
	SenderID string    `json:"sender_id"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
	Read     bool      `json:"read"`
}

type threadView struct {
	ID           string        `json:"id"`
	Kind         string        `json:"kind"`
	Participants []string      `json:"participants"`
	RideID       *string       `json:"ride_id,omitempty"`
	LastActivity time.Time     `json:"last_activity"`
	Messages     []messageView `json:"messages,omitempty"`
}

func toThreadView(t *chat.Thread, withMessages bool) threadView {
	view := threadView{
		ID:           t.ID,
		Kind:         t.Kind.String(),
		Participants: t.Participants,
		RideID:       t.RideID,
		LastActivity: t.LastActivity,
	}
	if withMessages {
		view.Messages = make([]messageView, 0, len(t.Messages))
		for _, m := range t.Messages {
			view.Messages = append(view.Messages, messageView{
				ID:       m.ID,
				SenderID: m.SenderID,
				Body:     m.Body,
				SentAt:   m.SentAt,
				Read:     m.Read,
			})
		}
	}
	return view
}

func toThreadViews(threads []*chat.Thread) []threadView {
	views := make([]threadView, 0, len(threads))
	for _, t := range threads {
		views = append(views, toThreadView(t, false))
	}
	return views
}
