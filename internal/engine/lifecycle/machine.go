// internal/engine/lifecycle/machine.go
package lifecycle

import (
	stderr "firmadoc-engine/internal/common/errors"
	"firmadoc-engine/internal/models"
)

// Event is a lifecycle trigger.
type Event string

const (
	EventCreate         Event = "create"
	EventSubmitOTP      Event = "submitOtp"
	EventSign           Event = "sign"
	EventConfirmStorage Event = "confirmStorage"
	EventExpire         Event = "expire"
	EventReject         Event = "reject"
)

// transitions is the full legal transition table. Anything absent here is an
// illegal transition and fails fast with no state change.
var transitions = map[models.Status]map[Event]models.Status{
	models.StatusDraft: {
		EventCreate: models.StatusAwaitingOTP,
		EventReject: models.StatusRejected,
	},
	models.StatusAwaitingOTP: {
		EventSubmitOTP: models.StatusAuthenticated,
		EventExpire:    models.StatusExpired,
		EventReject:    models.StatusRejected,
	},
	models.StatusAuthenticated: {
		EventSign:   models.StatusSigned,
		EventExpire: models.StatusExpired,
		EventReject: models.StatusRejected,
	},
	models.StatusSigned: {
		EventConfirmStorage: models.StatusClosed,
	},
}

// Next returns the status reached by applying event to from, or a typed
// ILLEGAL_TRANSITION error.
func Next(from models.Status, event Event) (models.Status, error) {
	if events, ok := transitions[from]; ok {
		if to, ok := events[event]; ok {
			return to, nil
		}
	}
	return "", stderr.NewIllegalTransitionError(string(from), string(event))
}

// CanApply reports whether event is legal in status.
func CanApply(from models.Status, event Event) bool {
	_, err := Next(from, event)
	return err == nil
}
