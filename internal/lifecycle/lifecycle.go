// Package lifecycle encodes the booking state machine: which events are legal
// from which status, and whether an existing booking blocks a new request.
// Functions here are pure — they take a Booking value and return an updated
// copy or an error, never touching the network. The client consults this
// package before issuing mutating calls so that illegal transitions are
// rejected uniformly instead of depending on scattered status checks.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/NakarmiKevus/neptrip-booking/internal/domain"
)

// CanRequestNew reports whether the requester may open a new booking.
// False whenever any existing booking is still pending or accepted: the
// lifecycle allows at most one active booking per requester. True for an
// empty set.
func CanRequestNew(existing []domain.Booking) bool {
	for _, b := range existing {
		if b.Status.IsActive() {
			return false
		}
	}
	return true
}

// ApplyResponse applies a guide's accept/decline decision to a pending
// booking. Returns ErrInvalidTransition if the booking is not pending, and
// ErrValidation for an unrecognized decision; the input is returned unchanged
// in both cases.
func ApplyResponse(b domain.Booking, d domain.Decision) (domain.Booking, error) {
	if !d.Valid() {
		return b, fmt.Errorf("decision must be %q or %q, got %q: %w",
			domain.DecisionAccept, domain.DecisionDecline, d, domain.ErrValidation)
	}
	target := domain.Status(d)
	if !b.Status.CanTransitionTo(target) {
		return b, fmt.Errorf("cannot respond to booking in status %q: %w",
			b.Status, domain.ErrInvalidTransition)
	}
	b.Status = target
	b.UpdatedAt = time.Now().UTC()
	return b, nil
}

// ApplyCompletion marks an accepted booking completed.
// Any other starting status is an ErrInvalidTransition.
func ApplyCompletion(b domain.Booking) (domain.Booking, error) {
	if !b.Status.CanTransitionTo(domain.StatusCompleted) {
		return b, fmt.Errorf("cannot complete booking in status %q: %w",
			b.Status, domain.ErrInvalidTransition)
	}
	b.Status = domain.StatusCompleted
	b.UpdatedAt = time.Now().UTC()
	return b, nil
}

// ApplyPaymentUpdate records payment details on an accepted booking.
// Payment fields are only mutable while the booking is accepted, and the
// update never changes the booking's status.
func ApplyPaymentUpdate(b domain.Booking, method domain.PaymentMethod, status domain.PaymentStatus, amount float64) (domain.Booking, error) {
	if b.Status != domain.StatusAccepted {
		return b, fmt.Errorf("payment is only updatable while accepted, booking is %q: %w",
			b.Status, domain.ErrInvalidTransition)
	}
	if amount < 0 {
		return b, fmt.Errorf("payment amount must be >= 0, got %v: %w", amount, domain.ErrValidation)
	}
	b.PaymentMethod = method
	b.PaymentStatus = status
	b.PaymentAmount = amount
	b.UpdatedAt = time.Now().UTC()
	return b, nil
}

// ApplyUserPayment records the requester's payment confirmation together with
// their 0-5 rating of the guide. Unlike ApplyPaymentUpdate this is also legal
// on a completed booking, because requesters settle up after the tour is
// marked done. Fractional ratings are accepted.
func ApplyUserPayment(b domain.Booking, method domain.PaymentMethod, amount, rating float64) (domain.Booking, error) {
	if b.Status != domain.StatusAccepted && b.Status != domain.StatusCompleted {
		return b, fmt.Errorf("cannot confirm payment on booking in status %q: %w",
			b.Status, domain.ErrInvalidTransition)
	}
	if amount < 0 {
		return b, fmt.Errorf("payment amount must be >= 0, got %v: %w", amount, domain.ErrValidation)
	}
	if rating < 0 || rating > 5 {
		return b, fmt.Errorf("rating must be in [0,5], got %v: %w", rating, domain.ErrValidation)
	}
	b.PaymentMethod = method
	b.PaymentStatus = domain.PaymentPaid
	b.PaymentAmount = amount
	b.Rating = rating
	b.UpdatedAt = time.Now().UTC()
	return b, nil
}
