package user

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// User is the domain entity corresponding to the `users` table.
// Profile CRUD lives at the HTTP boundary; the entity here carries only
// what the coordinator needs: role, duty flag and the cart back-reference.
type User struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Role        Role

	// Driver-only operational state.
	IsOnDuty       bool
	AssignedCartID *string // nil when no cart is held
}

var (
	ErrNotFound         = errors.New("user not found")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrNameRequired     = errors.New("first and last name are required")
	ErrNotADriver       = errors.New("user is not a driver")
	ErrOffDuty          = errors.New("driver is off duty")
	ErrActiveRide       = errors.New("driver has an active ride")
	ErrCartAlreadyHeld  = errors.New("driver already holds a cart")
	ErrNoAssignedCart   = errors.New("driver has no assigned cart")
)

// NewUser constructs a User entity. The caller provides the ID (UUID string).
func NewUser(id, firstName, lastName, email, phoneNumber string, role Role) (*User, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, ErrNameRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	now := time.Now().UTC()
	return &User{
		ID:          id,
		CreatedAt:   now,
		UpdatedAt:   now,
		FirstName:   firstName,
		LastName:    lastName,
		Email:       strings.ToLower(strings.TrimSpace(email)),
		PhoneNumber: strings.TrimSpace(phoneNumber),
		Role:        role,
	}, nil
}

// SetDuty flips the duty flag. Any transition is legal at the entity level;
// the fleet service rejects going off-duty mid-ride before calling this.
func (user *User) SetDuty(onDuty bool) error {
	if !user.Role.IsDriver() {
		return ErrNotADriver
	}
	user.IsOnDuty = onDuty
	user.touch()
	return nil
}

// AssignCart records the cart this driver holds. The matching cart-side
// mutation happens in the same unit of work (see fleet service).
func (user *User) AssignCart(cartID string) error {
	if !user.Role.IsDriver() {
		return ErrNotADriver
	}
	if user.AssignedCartID != nil {
		return ErrCartAlreadyHeld
	}
	user.AssignedCartID = &cartID
	user.touch()
	return nil
}

// UnassignCart clears the cart back-reference. Idempotent.
func (user *User) UnassignCart() {
	if user.AssignedCartID == nil {
		return
	}
	user.AssignedCartID = nil
	user.touch()
}

// FullName is used in chat and ride projections.
func (user *User) FullName() string {
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

func (user *User) touch() {
	user.UpdatedAt = time.Now().UTC()
}
