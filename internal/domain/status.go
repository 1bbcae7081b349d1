package domain

import (
	"fmt"
	"strings"

	"courier-dispatch/internal/apperr"
)

// Status is a delivery lifecycle state.
type Status string

// Delivery statuses.
const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// ActiveStatuses are the statuses that occupy a courier slot.
var ActiveStatuses = []Status{StatusAccepted, StatusInProgress}

// ParseStatus converts raw input into a known Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", apperr.ErrInvalid, s)
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether the lifecycle allows s -> to.
func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// IsActive reports whether s counts towards courier capacity.
func (s Status) IsActive() bool {
	return s == StatusAccepted || s == StatusInProgress
}

func (s Status) String() string { return string(s) }
