package ride

import (
	"time"

	"campuscart/internal/domain/user"
)

// Event is one row of the `ride_events` audit trail. Every committed status
// change appends exactly one event, so the trail replays to the current state.
type Event struct {
	ID         int64
	RideID     string
	FromStatus Status
	ToStatus   Status
	ActorRole  user.Role
	ActorID    *string // nil for system-originated changes
	Reason     *string // cancellation audit text
	CreatedAt  time.Time
}
