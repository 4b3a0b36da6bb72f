package ride

import "campuscart/internal/domain/user"

// transitionGrants is the capability table: (role, current status) -> target
// statuses the role may request. The lifecycle graph in Status.CanTransitionTo
// is checked separately and first, so a grant never widens the graph.
//
// Riders may only cancel; drivers run their own accepted ride forward and may
// abort it before pickup; dispatchers may drive any edge the graph allows.
// Acceptance is absent on purpose: it binds a driver and cart and therefore
// only happens through the accept operation.
var transitionGrants = map[user.Role]map[Status][]Status{
	user.RoleRider: {
		StatusRequested: {StatusCancelled},
		StatusAccepted:  {StatusCancelled},
	},
	user.RoleDriver: {
		StatusAccepted:   {StatusInProgress, StatusCancelled},
		StatusInProgress: {StatusCompleted},
	},
	user.RoleDispatcher: {
		StatusRequested:  {StatusCancelled},
		StatusAccepted:   {StatusInProgress, StatusCancelled},
		StatusInProgress: {StatusCompleted},
	},
}

// RoleAllows reports whether the capability table grants role the edge
// from -> to.
func RoleAllows(role user.Role, from, to Status) bool {
	grants, ok := transitionGrants[role]
	if !ok {
		return false
	}
	for _, target := range grants[from] {
		if target == to {
			return true
		}
	}
	return false
}
