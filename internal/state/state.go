// Package state holds the entitlement lifecycle table. The store's CAS
// enforces transitions physically; this package decides which ones are
// legal at all, so every call site rejects illegal moves the same way.
package state

import (
	"github.com/studentverse/redemption/internal/domain"
)

// Event names a lifecycle action applied to an entitlement.
type Event string

const (
	// EventValidate reserves an ACTIVE entitlement at the counter.
	EventValidate Event = "validate"
	// EventConfirm finalizes a reserved entitlement into USED.
	EventConfirm Event = "confirm"
	// EventCancel releases a reservation back to ACTIVE.
	EventCancel Event = "cancel"
	// EventVoid reverses a USED entitlement.
	EventVoid Event = "void"
	// EventExpire retires an entitlement whose local day has ended.
	EventExpire Event = "expire"
)

var transitions = map[domain.State]map[Event]domain.State{
	domain.StateActive: {
		EventValidate: domain.StatePendingConfirmation,
		EventExpire:   domain.StateExpired,
	},
	domain.StatePendingConfirmation: {
		EventConfirm: domain.StateUsed,
		EventCancel:  domain.StateActive,
		EventExpire:  domain.StateExpired,
	},
	domain.StateUsed: {
		EventVoid: domain.StateVoided,
	},
}

// Next returns the state reached by applying ev to from, or INVALID_STATE
// when the lifecycle does not allow it.
func Next(from domain.State, ev Event) (domain.State, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return "", domain.Ef(domain.KindInvalidState, "cannot %s an entitlement that is %s", ev, from)
}

// Can reports whether ev is legal from the given state.
func Can(from domain.State, ev Event) bool {
	_, ok := transitions[from][ev]
	return ok
}

// Terminal reports whether no event can move the entitlement further.
func Terminal(s domain.State) bool {
	return len(transitions[s]) == 0
}
