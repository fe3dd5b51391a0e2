// Package domain contains the core data types for the NepTrip booking client.
// This package has zero dependencies on transport or scheduling and is
// imported by every other internal package (lifecycle, client, poller).
package domain

import "time"

// PaymentMethod is how the requester intends to settle the guide's fee.
// Empty until the requester picks one.
type PaymentMethod string

const (
	PaymentMethodUnset  PaymentMethod = ""
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodOnline PaymentMethod = "online"
)

// PaymentStatus tracks how much of the fee has been settled.
type PaymentStatus string

const (
	PaymentUnspecified   PaymentStatus = "unspecified"
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentPaid          PaymentStatus = "paid"
)

// Booking is a single request by a user to be guided on a trek, tracked
// through its lifecycle. The backend owns the record; any Booking value held
// client-side is a possibly-stale copy used to drive polling and display,
// never the source of truth.
type Booking struct {
	// ID is assigned by the backend on creation and is opaque to the client.
	ID string `json:"_id"`

	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Destination string `json:"destination"`
	Date        string `json:"date"` // YYYY-MM-DD, as the backend stores it
	PeopleCount int    `json:"peopleCount"`

	// Guide is nil until the backend assigns one.
	Guide *Guide `json:"guide,omitempty"`

	Status        Status        `json:"status"`
	PaymentMethod PaymentMethod `json:"paymentMethod,omitempty"`
	PaymentStatus PaymentStatus `json:"paymentStatus,omitempty"`
	PaymentAmount float64       `json:"paymentAmount,omitempty"`

	// Rating is the 0-5 score the requester submits when confirming payment.
	// Fractional values are legal even though the app UI offers whole stars.
	Rating float64 `json:"rating,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Guide is the profile of a trekking guide. Guides are managed by admin
// tooling; the booking lifecycle only reads them to resolve "assigned guide".
type Guide struct {
	ID           string   `json:"_id"`
	FullName     string   `json:"fullName"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
	Experience   string   `json:"experience,omitempty"`
	Languages    []string `json:"language,omitempty"`
	TrekCount    int      `json:"trekCount,omitempty"`
	AvgRating    float64  `json:"averageRating,omitempty"`
	RatingsCount int      `json:"totalRatings,omitempty"`
	QRPhotoURL   string   `json:"qrPhotoUrl,omitempty"`
}

// BookingRequest is the payload for creating a booking. The validate tags are
// enforced by the client before any network call, so a malformed request
// fails fast with ErrValidation instead of a round trip.
type BookingRequest struct {
	FullName    string `json:"fullName" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required"`
	Address     string `json:"address" validate:"required"`
	Destination string `json:"destination" validate:"required"`
	Date        string `json:"date" validate:"required"`
	PeopleCount int    `json:"peopleCount" validate:"required,gte=1"`
}

// Payment carries a payment mutation for UpdatePaymentStatus.
type Payment struct {
	Method PaymentMethod `json:"paymentMethod,omitempty"`
	Status PaymentStatus `json:"paymentStatus"`
	Amount float64       `json:"paymentAmount"`
}

// SearchFilters narrows a booking search. Zero-valued fields are omitted
// from the query string.
type SearchFilters struct {
	Destination string
	Status      Status
	Date        string
}

// Decision is a guide's answer to a pending booking.
type Decision string

const (
	DecisionAccept  Decision = "accepted"
	DecisionDecline Decision = "declined"
)

// Valid reports whether d is one of the two recognized decisions.
func (d Decision) Valid() bool {
	return d == DecisionAccept || d == DecisionDecline
}
