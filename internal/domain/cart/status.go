package cart

import (
	"errors"
	"strings"
)

// Status is a cart status as stored in the `carts` table.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusInUse       Status = "in_use"
	StatusMaintenance Status = "maintenance"
)

var ErrInvalidStatus = errors.New("invalid cart status")

// ParseStatus normalizes (lowercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed cart status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusAvailable, StatusInUse, StatusMaintenance:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}
