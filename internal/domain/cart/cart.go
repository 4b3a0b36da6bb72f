package cart

import (
	"errors"
	"strings"
	"time"
)

// Cart is the domain entity corresponding to the `carts` table.
// Invariant: Status == in_use exactly when CurrentDriverID is set, and a
// cart in maintenance never holds a driver.
type Cart struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	Number      string // human-facing, unique
	Description string

	Status          Status
	CurrentDriverID *string // nil unless Status == in_use

	LastMaintenance *time.Time
}

var (
	ErrNotFound        = errors.New("cart not found")
	ErrDuplicateNumber = errors.New("cart number already registered")
	ErrNumberRequired  = errors.New("cart number is required")
	ErrNotAvailable    = errors.New("cart is not available")
	ErrDriverRequired  = errors.New("driver id is required")
)

// NewCart creates a cart in the available state. The caller provides the
// ID (UUID string); number uniqueness is enforced by the repository.
func NewCart(id, number, description string) (*Cart, error) {
	if number = strings.TrimSpace(number); number == "" {
		return nil, ErrNumberRequired
	}

	now := time.Now().UTC()
	return &Cart{
		ID:          id,
		CreatedAt:   now,
		UpdatedAt:   now,
		Number:      number,
		Description: strings.TrimSpace(description),
		Status:      StatusAvailable,
	}, nil
}

// Bind attaches a driver and moves available -> in_use.
func (cart *Cart) Bind(driverID string) error {
	if strings.TrimSpace(driverID) == "" {
		return ErrDriverRequired
	}
	if cart.Status != StatusAvailable {
		return ErrNotAvailable
	}
	cart.CurrentDriverID = &driverID
	cart.setStatus(StatusInUse)
	return nil
}

// Unbind detaches the driver and returns the cart to available.
// Idempotent: unbinding an unbound cart is a no-op.
func (cart *Cart) Unbind() {
	if cart.CurrentDriverID == nil && cart.Status != StatusInUse {
		return
	}
	cart.CurrentDriverID = nil
	if cart.Status == StatusInUse {
		cart.setStatus(StatusAvailable)
	}
}

// EnterMaintenance takes the cart out of rotation. If a driver is bound the
// cart is unbound first; the caller must clear the driver's back-reference
// in the same unit of work. Returns the driver that was detached, if any.
func (cart *Cart) EnterMaintenance() (detachedDriver *string) {
	detachedDriver = cart.CurrentDriverID
	cart.CurrentDriverID = nil
	now := time.Now().UTC()
	cart.LastMaintenance = &now
	cart.setStatus(StatusMaintenance)
	return detachedDriver
}

// LeaveMaintenance returns the cart to the available pool.
func (cart *Cart) LeaveMaintenance() error {
	if cart.Status != StatusMaintenance {
		return ErrInvalidStatus
	}
	cart.setStatus(StatusAvailable)
	return nil
}

func (cart *Cart) setStatus(status Status) {
	cart.Status = status
	cart.touch()
}

func (cart *Cart) touch() {
	cart.UpdatedAt = time.Now().UTC()
}
