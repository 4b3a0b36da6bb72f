// Package fleet manages the cart registry, driver duty, and the
// cart<->driver binding. Both sides of a binding always change inside one
// unit of work so the bidirectional references never diverge.
package fleet

import (
	"campuscart/internal/general/logger"
	"campuscart/internal/ports"
)

type Service struct {
	log   *logger.Logger
	uow   ports.UnitOfWork
	carts ports.CartRepository
	users ports.UserRepository
	rides ports.RideRepository
}

var _ ports.FleetService = (*Service)(nil)

func New(
	log *logger.Logger,
	uow ports.UnitOfWork,
	carts ports.CartRepository,
	users ports.UserRepository,
	rides ports.RideRepository,
) *Service {
	return &Service{log: log, uow: uow, carts: carts, users: users, rides: rides}
}
