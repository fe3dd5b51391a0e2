// Package session supplies the current actor's identity and credential to the
// booking client. It is a capability interface: the client asks the session
// for a token at call time instead of reading ambient global storage, so
// tests can inject a fake session without touching process-wide state.
package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/NakarmiKevus/neptrip-booking/internal/domain"
)

// Roles recognized by the backend. The client never enforces role policy
// itself (the backend owns that), but callers use these to decide which
// endpoints to drive.
const (
	RoleUser  = "user"
	RoleGuide = "guide"
	RoleAdmin = "admin"
)

// Session provides the credential and identity for the current actor.
//
// Token returns the bearer token to attach to a request, or an error wrapping
// domain.ErrUnauthorized when no usable credential exists. The client
// short-circuits locally on that error — no network call is made.
type Session interface {
	Token() (string, error)
	Role() string
	UserID() string
}

// Static is a fixed-credential Session, useful in tests and for service
// accounts whose token lifetime is managed elsewhere.
type Static struct {
	BearerToken string
	ActorRole   string
	ActorID     string
}

var _ Session = Static{}

func (s Static) Token() (string, error) {
	if s.BearerToken == "" {
		return "", fmt.Errorf("no token in session: %w", domain.ErrUnauthorized)
	}
	return s.BearerToken, nil
}

func (s Static) Role() string   { return s.ActorRole }
func (s Static) UserID() string { return s.ActorID }

// claims is the subset of the backend's JWT payload the client cares about.
type claims struct {
	Role   string `json:"role"`
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// JWT is a Session backed by a backend-issued JWT. The token is parsed
// without signature verification — only the backend holds the signing key,
// and it re-verifies on every request. Parsing client-side exists to read
// the role/user-id claims and to reject an expired token locally, saving a
// guaranteed-401 round trip.
type JWT struct {
	raw string
	cl  claims
}

// NewJWT parses token and returns a JWT session.
// A token that cannot be parsed at all is rejected with ErrUnauthorized.
func NewJWT(token string) (*JWT, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", domain.ErrUnauthorized)
	}
	var cl claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &cl); err != nil {
		return nil, fmt.Errorf("malformed token: %w", domain.ErrUnauthorized)
	}
	return &JWT{raw: token, cl: cl}, nil
}

var _ Session = (*JWT)(nil)

// Token returns the raw bearer token, or ErrUnauthorized if the embedded
// expiry has passed.
func (s *JWT) Token() (string, error) {
	if s.cl.ExpiresAt != nil && s.cl.ExpiresAt.Before(time.Now()) {
		return "", fmt.Errorf("token expired at %s: %w",
			s.cl.ExpiresAt.Format(time.RFC3339), domain.ErrUnauthorized)
	}
	return s.raw, nil
}

func (s *JWT) Role() string { return s.cl.Role }

// UserID returns the actor's ID from the userId claim, falling back to the
// registered subject claim when the backend populates only that.
func (s *JWT) UserID() string {
	if s.cl.UserID != "" {
		return s.cl.UserID
	}
	return s.cl.Subject
}
