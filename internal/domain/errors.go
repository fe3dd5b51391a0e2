package domain

import "errors"

// Sentinel errors forming the failure taxonomy of the booking client.
// Every failure crossing the client boundary wraps exactly one of these, so
// callers can sort outcomes with errors.Is instead of probing error strings
// or transport types. ErrNetwork and ErrServer mean "retry might help";
// the rest mean "not permitted as asked".
var (
	// ErrNetwork covers connectivity failures and transport timeouts.
	// The backend was never reached, or never answered in time.
	ErrNetwork = errors.New("network error")

	// ErrUnauthorized means the credential is missing, expired, or rejected.
	// Raised locally (no network call) when the session has no usable token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation means the request was rejected as malformed or not
	// permitted, either locally before sending or by the backend.
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned by by-id lookups when the booking does not
	// exist. "No latest booking yet" is NOT this error — GetLatestBooking
	// maps that case to a nil booking and a nil error.
	ErrNotFound = errors.New("not found")

	// ErrServer covers 5xx responses and anything the client cannot decode.
	ErrServer = errors.New("server error")

	// ErrInvalidTransition is returned by the lifecycle package when an
	// event is not legal from the booking's current status. Detected before
	// any network call; the booking is left unchanged.
	ErrInvalidTransition = errors.New("invalid transition")
)
