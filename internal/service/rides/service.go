// Package rides implements the ride lifecycle and the assignment race on top
// of the repository ports. All writes run inside the unit of work; bus and
// broker publications happen only after the transaction committed.
package rides

import (
	"time"

	"campuscart/internal/events"
	"campuscart/internal/general/logger"
	"campuscart/internal/general/metrics"
	"campuscart/internal/ports"
)

type Service struct {
	log     *logger.Logger
	uow     ports.UnitOfWork
	rides   ports.RideRepository
	audit   ports.RideEventRepository
	users   ports.UserRepository
	threads ports.ThreadRepository
	bus     *events.Bus
	stats   *metrics.Metrics

	now func() time.Time
}

var _ ports.RideService = (*Service)(nil)

func New(
	log *logger.Logger,
	uow ports.UnitOfWork,
	rides ports.RideRepository,
	audit ports.RideEventRepository,
	users ports.UserRepository,
	threads ports.ThreadRepository,
	bus *events.Bus,
	stats *metrics.Metrics,
) *Service {
	return &Service{
		log:     log,
		uow:     uow,
		rides:   rides,
		audit:   audit,
		users:   users,
		threads: threads,
		bus:     bus,
		stats:   stats,
		now:     func() time.Time { return time.Now().UTC() },
	}
}
