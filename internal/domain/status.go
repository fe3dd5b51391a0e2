package domain

import "fmt"

// Status represents where a booking sits in its lifecycle.
// A booking is created as StatusPending; the assigned guide moves it to
// StatusAccepted or StatusDeclined; an accepted booking is closed out as
// StatusCompleted. Declined and completed are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
	StatusDeclined  Status = "declined"
)

// validTransitions is the single source of truth for lifecycle legality.
// Every status check in the lifecycle package routes through this table so
// that an illegal transition cannot slip past an ad-hoc string comparison.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusDeclined},
	StatusAccepted:  {StatusCompleted},
	StatusCompleted: {},
	StatusDeclined:  {},
}

// ParseStatus converts a wire string into a Status.
// Returns ErrValidation for anything outside the four known values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown booking status %q: %w", s, ErrValidation)
	}
	return st, nil
}

// IsValid reports whether s is one of the four recognized statuses.
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	next, ok := validTransitions[s]
	if !ok {
		return true
	}
	return len(next) == 0
}

// IsActive reports whether a booking in this status blocks the requester
// from opening another one.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusAccepted
}

// CanTransitionTo reports whether the lifecycle permits moving from s to target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}
