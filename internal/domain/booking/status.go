package booking

import (
	"fmt"

	"github.com/railbook/service-booking/internal/platform/domain"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// Action is an operation requested against a booking.
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
)

// transitions is the complete state machine. A missing (state, action) pair is invalid.
// The policy guard on CONFIRMED -> CANCELLED is applied by Booking.Cancel.
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionConfirm: StatusConfirmed,
		ActionCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		ActionCancel: StatusCancelled,
	},
	StatusCancelled: {},
}

// Next returns the state reached by applying action to s.
func (s Status) Next(action Action) (Status, error) {
	next, ok := transitions[s][action]
	if !ok {
		return s, domain.NewInvalidStateError(string(s), string(targetOf(action)))
	}
	return next, nil
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no action is allowed from s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) String() string { return string(s) }

// ParseStatus converts a stored value to a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

func targetOf(action Action) Status {
	switch action {
	case ActionConfirm:
		return StatusConfirmed
	case ActionCancel:
		return StatusCancelled
	default:
		return Status(action)
	}
}
