package chat

import (
	"errors"
	"strings"
)

// Kind is a thread kind as stored in the `chat_threads` table.
type Kind string

const (
	KindPrivate     Kind = "private"
	KindRide        Kind = "ride"
	KindDriverGroup Kind = "driver_group"
)

var ErrInvalidKind = errors.New("invalid thread kind")

// ParseKind normalizes (lowercases+trims) and validates a kind string.
func ParseKind(in string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(in)))
	if kind.Valid() {
		return kind, nil
	}
	return "", ErrInvalidKind
}

// Valid reports whether kind is one of the allowed thread kinds.
func (kind Kind) Valid() bool {
	switch kind {
	case KindPrivate, KindRide, KindDriverGroup:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Kind.
func (kind Kind) String() string {
	return string(kind)
}
