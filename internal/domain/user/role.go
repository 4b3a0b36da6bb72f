package user

import (
	"errors"
	"strings"
)

// Role is a user role as stored in the `users` table.
type Role string

const (
	RoleRider      Role = "rider"
	RoleDriver     Role = "driver"
	RoleDispatcher Role = "dispatcher"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes (lowercases+trims) and validates a role string.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if role.Valid() {
		return role, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether role is one of the allowed role constants.
func (role Role) Valid() bool {
	switch role {
	case RoleRider, RoleDriver, RoleDispatcher:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Role.
func (role Role) String() string {
	return string(role)
}

// Convenience helpers.
func (role Role) IsRider() bool      { return role == RoleRider }
func (role Role) IsDriver() bool     { return role == RoleDriver }
func (role Role) IsDispatcher() bool { return role == RoleDispatcher }
