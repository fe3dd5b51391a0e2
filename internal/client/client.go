// Package client implements the HTTP adapter for the NepTrip booking backend.
// It translates lifecycle operations into REST calls and normalizes every
// failure into the domain error taxonomy — a caller never sees a raw
// transport error, an HTTP status code, or a JSON decoding failure.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/NakarmiKevus/neptrip-booking/internal/domain"
	"github.com/NakarmiKevus/neptrip-booking/internal/lifecycle"
	"github.com/NakarmiKevus/neptrip-booking/internal/session"
)

// defaultTimeout bounds each backend call when the caller does not supply
// their own http.Client. A timed-out call surfaces as domain.ErrNetwork.
const defaultTimeout = 10 * time.Second

// Client talks to the booking endpoints of the NepTrip backend.
// Construct with New; the zero value is not usable.
//
// Client is safe for concurrent use. It is stateless except for a one-slot
// memory of the caller's active booking, kept so that a second booking
// request can be refused locally (no network call) while one is in flight.
type Client struct {
	baseURL  string
	http     *http.Client
	sess     session.Session
	validate *validator.Validate
	log      *slog.Logger

	mu     sync.Mutex
	active *domain.Booking // last known booking with a non-terminal status
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (10s timeout). The supplied
// client's transport is still wrapped for per-call logging.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger for per-call log lines. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New constructs a Client for the backend at baseURL (e.g.
// "https://api.neptrip.example/api/v1/booking"), authenticating every call
// with the token supplied by sess.
func New(baseURL string, sess session.Session, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sess:     sess,
		validate: validator.New(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	// Copy so the caller's client is not mutated.
	h := *c.http
	h.Transport = &loggingTransport{next: base, log: c.log}
	c.http = &h
	return c
}

// --- response envelopes -----------------------------------------------------
// The backend wraps every payload in {success, message, ...}. Decoding targets
// below mirror that shape; the client unwraps before returning.

type bookingEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Booking *domain.Booking `json:"booking,omitempty"`
}

type bookingsEnvelope struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message,omitempty"`
	Bookings []domain.Booking `json:"bookings"`
}

type statusEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// --- operations -------------------------------------------------------------

// RequestBooking creates a new booking. The payload is validated locally
// first, and the call is refused locally with ErrInvalidTransition if the
// client already knows of an active (pending or accepted) booking — the
// lifecycle permits at most one. On success the returned booking is pending
// and remembered as the active one.
func (c *Client) RequestBooking(ctx context.Context, req domain.BookingRequest) (*domain.Booking, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("booking request invalid: %v: %w", err, domain.ErrValidation)
	}

	c.mu.Lock()
	blocked := c.active != nil && !lifecycle.CanRequestNew([]domain.Booking{*c.active})
	c.mu.Unlock()
	if blocked {
		return nil, fmt.Errorf("an active booking already exists: %w", domain.ErrInvalidTransition)
	}

	var env bookingEnvelope
	headers := http.Header{"X-Idempotency-Key": []string{uuid.NewString()}}
	if err := c.do(ctx, http.MethodPost, "/request", headers, req, &env); err != nil {
		return nil, err
	}
	if env.Booking == nil {
		return nil, fmt.Errorf("backend returned no booking: %w", domain.ErrServer)
	}
	c.remember(env.Booking)
	return env.Booking, nil
}

// GetLatestBooking returns the most recent booking for the current actor.
// A backend "no booking yet" response yields (nil, nil) — absence is a
// normal state for a new user, not a failure.
func (c *Client) GetLatestBooking(ctx context.Context) (*domain.Booking, error) {
	var env bookingEnvelope
	err := c.do(ctx, http.MethodGet, "/latest-booking", nil, nil, &env)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if env.Booking != nil {
		c.remember(env.Booking)
	}
	return env.Booking, nil
}

// GetBookingStatus fetches only the status of a booking by ID.
func (c *Client) GetBookingStatus(ctx context.Context, id string) (domain.Status, error) {
	var env statusEnvelope
	if err := c.do(ctx, http.MethodGet, "/status/"+url.PathEscape(id), nil, nil, &env); err != nil {
		return "", err
	}
	return domain.ParseStatus(env.Status)
}

// RespondToBooking submits the guide's accept/decline decision for a pending
// booking. The decision is checked locally; the backend re-validates the
// transition and that the caller is the assigned guide.
func (c *Client) RespondToBooking(ctx context.Context, id string, d domain.Decision) (*domain.Booking, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("decision %q is not accepted/declined: %w", d, domain.ErrValidation)
	}
	var env bookingEnvelope
	body := map[string]string{"status": string(d)}
	if err := c.do(ctx, http.MethodPut, "/respond/"+url.PathEscape(id), nil, body, &env); err != nil {
		return nil, err
	}
	c.remember(env.Booking)
	return env.Booking, nil
}

// CompleteTour marks an accepted booking completed.
func (c *Client) CompleteTour(ctx context.Context, id string) (*domain.Booking, error) {
	var env bookingEnvelope
	if err := c.do(ctx, http.MethodPut, "/complete/"+url.PathEscape(id), nil, nil, &env); err != nil {
		return nil, err
	}
	c.remember(env.Booking)
	return env.Booking, nil
}

// UpdatePaymentStatus records payment progress on a booking.
func (c *Client) UpdatePaymentStatus(ctx context.Context, id string, p domain.Payment) (*domain.Booking, error) {
	if p.Amount < 0 {
		return nil, fmt.Errorf("payment amount must be >= 0: %w", domain.ErrValidation)
	}
	var env bookingEnvelope
	if err := c.do(ctx, http.MethodPut, "/payment/"+url.PathEscape(id), nil, p, &env); err != nil {
		return nil, err
	}
	c.remember(env.Booking)
	return env.Booking, nil
}

// UpdatePaymentMethod sets how the requester intends to pay.
func (c *Client) UpdatePaymentMethod(ctx context.Context, id string, m domain.PaymentMethod) (*domain.Booking, error) {
	var env bookingEnvelope
	body := map[string]string{"paymentMethod": string(m)}
	if err := c.do(ctx, http.MethodPut, "/payment-method/"+url.PathEscape(id), nil, body, &env); err != nil {
		return nil, err
	}
	c.remember(env.Booking)
	return env.Booking, nil
}

// MarkUserPayment is the requester confirming they have paid, together with a
// 0-5 rating of the guide. Fractional ratings are legal.
func (c *Client) MarkUserPayment(ctx context.Context, id string, m domain.PaymentMethod, amount, rating float64) (*domain.Booking, error) {
	if rating < 0 || rating > 5 {
		return nil, fmt.Errorf("rating must be in [0,5], got %v: %w", rating, domain.ErrValidation)
	}
	if amount < 0 {
		return nil, fmt.Errorf("payment amount must be >= 0: %w", domain.ErrValidation)
	}
	var env bookingEnvelope
	body := map[string]any{
		"paymentMethod": string(m),
		"paymentAmount": amount,
		"rating":        rating,
	}
	if err := c.do(ctx, http.MethodPut, "/mark-user-payment/"+url.PathEscape(id), nil, body, &env); err != nil {
		return nil, err
	}
	c.remember(env.Booking)
	return env.Booking, nil
}

// SearchBookings returns bookings matching the given filters.
func (c *Client) SearchBookings(ctx context.Context, f domain.SearchFilters) ([]domain.Booking, error) {
	q := url.Values{}
	if f.Destination != "" {
		q.Set("destination", f.Destination)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Date != "" {
		q.Set("date", f.Date)
	}
	path := "/search"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var env bookingsEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &env); err != nil {
		return nil, err
	}
	return env.Bookings, nil
}

// GetGuideRequests returns the booking requests assigned to the calling guide.
func (c *Client) GetGuideRequests(ctx context.Context) ([]domain.Booking, error) {
	return c.list(ctx, "/requests")
}

// GetAllRequests returns every booking request (guide/admin view).
func (c *Client) GetAllRequests(ctx context.Context) ([]domain.Booking, error) {
	return c.list(ctx, "/all-requests")
}

// GetUserBookings returns the calling requester's booking history.
func (c *Client) GetUserBookings(ctx context.Context) ([]domain.Booking, error) {
	return c.list(ctx, "/user-bookings")
}

func (c *Client) list(ctx context.Context, path string) ([]domain.Booking, error) {
	var env bookingsEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &env); err != nil {
		return nil, err
	}
	return env.Bookings, nil
}

// remember keeps the one-slot active-booking memory current. Terminal
// bookings clear the slot so a new request is no longer blocked.
func (c *Client) remember(b *domain.Booking) {
	if b == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if b.Status.IsTerminal() {
		if c.active != nil && c.active.ID == b.ID {
			c.active = nil
		}
		return
	}
	copied := *b
	c.active = &copied
}

// --- request plumbing -------------------------------------------------------

// do issues one backend call and decodes the response into out.
// All failure modes are normalized here: a missing token short-circuits
// before any I/O, transport errors become ErrNetwork, and HTTP error statuses
// map onto the taxonomy via mapStatus.
func (c *Client) do(ctx context.Context, method, path string, headers http.Header, body, out any) error {
	token, err := c.sess.Token()
	if err != nil {
		return err // already wraps domain.ErrUnauthorized
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %v: %w", err, domain.ErrValidation)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %v: %w", err, domain.ErrValidation)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", method, path, err, domain.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.mapStatus(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %v: %w", err, domain.ErrServer)
	}
	return nil
}

// mapStatus folds an HTTP error response into the domain taxonomy.
// The backend's message, when present, is kept in the error text for logs;
// callers branch on the wrapped sentinel, never on the text.
func (c *Client) mapStatus(resp *http.Response) error {
	var env errorEnvelope
	msg := resp.Status
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&env); err == nil && env.Message != "" {
		msg = env.Message
	}

	var kind error
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = domain.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		kind = domain.ErrNotFound
	case resp.StatusCode == http.StatusBadRequest ||
		resp.StatusCode == http.StatusConflict ||
		resp.StatusCode == http.StatusUnprocessableEntity:
		kind = domain.ErrValidation
	case resp.StatusCode >= 500:
		kind = domain.ErrServer
	default:
		kind = domain.ErrServer
	}
	return fmt.Errorf("%s: %w", msg, kind)
}
