package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NakarmiKevus/neptrip-booking/internal/bookingtest"
	"github.com/NakarmiKevus/neptrip-booking/internal/client"
	"github.com/NakarmiKevus/neptrip-booking/internal/domain"
	"github.com/NakarmiKevus/neptrip-booking/internal/session"
)

// env is a fake backend plus one client per role, with a request counter so
// tests can assert that locally-refused operations never touch the network.
type env struct {
	srv      *bookingtest.Server
	ts       *httptest.Server
	user     *client.Client
	guide    *client.Client
	requests atomic.Int64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{srv: bookingtest.NewServer()}

	handler := e.srv.Handler()
	e.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.requests.Add(1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(e.ts.Close)

	e.srv.AddActor(bookingtest.Actor{Token: "user-token", UserID: "user-1", Role: bookingtest.RoleUser})
	e.srv.AddActor(bookingtest.Actor{Token: "guide-token", UserID: e.srv.Guide().ID, Role: bookingtest.RoleGuide})

	e.user = client.New(e.ts.URL, session.Static{BearerToken: "user-token", ActorRole: session.RoleUser, ActorID: "user-1"})
	e.guide = client.New(e.ts.URL, session.Static{BearerToken: "guide-token", ActorRole: session.RoleGuide, ActorID: e.srv.Guide().ID})
	return e
}

func validRequest() domain.BookingRequest {
	return domain.BookingRequest{
		FullName:    "Kiran Rai",
		Email:       "kiran@example.com",
		Phone:       "+977-9811111111",
		Address:     "Kathmandu",
		Destination: "Everest Base Camp",
		Date:        "2024-05-01",
		PeopleCount: 2,
	}
}

// ---- RequestBooking --------------------------------------------------------

func TestRequestBooking_success(t *testing.T) {
	e := newEnv(t)

	b, err := e.user.RequestBooking(context.Background(), validRequest())

	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, domain.StatusPending, b.Status)
	assert.Equal(t, "Everest Base Camp", b.Destination)
	require.NotNil(t, b.Guide)
	assert.Equal(t, e.srv.Guide().ID, b.Guide.ID)
}

// TestRequestBooking_secondRefusedLocally: with one pending booking, a second
// request must be rejected by the client's own lifecycle guard, without
// reaching the backend at all.
func TestRequestBooking_secondRefusedLocally(t *testing.T) {
	e := newEnv(t)

	_, err := e.user.RequestBooking(context.Background(), validRequest())
	require.NoError(t, err)

	before := e.requests.Load()
	_, err = e.user.RequestBooking(context.Background(), validRequest())

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, before, e.requests.Load(), "local refusal must not issue a network call")
}

// TestRequestBooking_serverEnforcesSingleActive: a fresh client (empty local
// cache, as on a second device) bypasses the local guard; the backend must
// still refuse the duplicate. This is the authoritative enforcement of the
// one-active-booking rule.
func TestRequestBooking_serverEnforcesSingleActive(t *testing.T) {
	e := newEnv(t)

	_, err := e.user.RequestBooking(context.Background(), validRequest())
	require.NoError(t, err)

	secondDevice := client.New(e.ts.URL, session.Static{BearerToken: "user-token", ActorRole: session.RoleUser, ActorID: "user-1"})
	_, err = secondDevice.RequestBooking(context.Background(), validRequest())

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRequestBooking_invalidPayloadRejectedLocally(t *testing.T) {
	e := newEnv(t)

	req := validRequest()
	req.Email = "not-an-email"
	req.PeopleCount = 0

	before := e.requests.Load()
	_, err := e.user.RequestBooking(context.Background(), req)

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, before, e.requests.Load())
}

func TestRequestBooking_afterDecline(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	b, err := e.user.RequestBooking(ctx, validRequest())
	require.NoError(t, err)
	_, err = e.guide.RespondToBooking(ctx, b.ID, domain.DecisionDecline)
	require.NoError(t, err)

	// A declined booking is terminal; it must not block the next request.
	// The client learns about the terminal state via its next fetch.
	latest, err := e.user.GetLatestBooking(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDeclined, latest.Status)

	_, err = e.user.RequestBooking(ctx, validRequest())
	assert.NoError(t, err)
}

// ---- GetLatestBooking ------------------------------------------------------

// TestGetLatestBooking_none: "no booking yet" is an ordinary state for a new
// user, so the 404 from the backend maps to (nil, nil), not ErrNotFound.
func TestGetLatestBooking_none(t *testing.T) {
	e := newEnv(t)

	b, err := e.user.GetLatestBooking(context.Background())

	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestGetLatestBooking_returnsNewest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.user.RequestBooking(ctx, validRequest())
	require.NoError(t, err)

	got, err := e.user.GetLatestBooking(ctx)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
}

// ---- status / respond / complete ------------------------------------------

func TestGetBookingStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	b, err := e.user.RequestBooking(ctx, validRequest())
	require.NoError(t, err)

	st, err := e.user.GetBookingStatus(ctx, b.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, st)
}

func TestGetBookingStatus_missing(t *testing.T) {
	e := newEnv(t)

	_, err := e.user.GetBookingStatus(context.Background(), "no-such-id")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestGuideFlow_acceptCompleteThenRespondFails walks the happy guide path and
// then verifies the terminal state is closed: accept → complete → a late
// decline is refused.
func TestGuideFlow_acceptCompleteThenRespondFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	b, err := e.user.RequestBooking(ctx, validRequest())
	require.NoError(t, err)

	accepted, err := e.guide.RespondToBooking(ctx, b.ID, domain.DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, accepted.Status)

	completed, err := e.guide.CompleteTour(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, completed.Status)

	_, err = e.guide.RespondToBooking(ctx, b.ID, domain.DecisionDecline)
	assert.ErrorIs(t, err, domain.ErrValidation)

	// The store still holds the completed booking, untouched.
	stored, ok := e.srv.Booking(b.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestRespondToBooking_onlyAssignedGuide(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	b, err := e.user.RequestBooking(ctx, validRequest())
	require.NoError(t, err)

	// The requester is not the assigned guide.
	_, err = e.user.RespondToBooking(ctx, b.ID, domain.DecisionAccept)

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRespondToBooking_badDecisionRejectedLocally(t *testing.T) {
	e := newEnv(t)

	before := e.requests.Load()
	_, err := e.guide.RespondToBooking(context.Background(), "whatever", domain.Decision("maybe"))

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, before, e.requests.Load())
}

func TestCompleteTour_pendingFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	b, err := e.user.RequestBooking(ctx, validRequest())
	require.NoError(t, err)

	_, err = e.guide.CompleteTour(ctx, b.ID)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

// ---- payments --------------------------------------------------------------

func TestUpdatePaymentStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	b, err := e.user.RequestBooking(ctx, validRequest())
	require.NoError(t, err)
	_, err = e.guide.RespondToBooking(ctx, b.ID, domain.DecisionAccept)
	require.NoError(t, err)

	got, err := e.guide.UpdatePaymentStatus(ctx, b.ID, domain.Payment{
		Method: domain.PaymentMethodCash,
		Status: domain.PaymentPartiallyPaid,
		Amount: 50,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPartiallyPaid, got.PaymentStatus)
	assert.Equal(t, 50.0, got.PaymentAmount)
	// Payment updates never move the lifecycle.
	assert.Equal(t, domain.StatusAccepted, got.Status)
}

func TestUpdatePaymentMethod(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	b, err := e.user.RequestBooking(ctx, validRequest())
	require.NoError(t, err)

	got, err := e.user.UpdatePaymentMethod(ctx, b.ID, domain.PaymentMethodOnline)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodOnline, got.PaymentMethod)
}

func TestMarkUserPayment_withRating(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	b, err := e.user.RequestBooking(ctx, validRequest())
	require.NoError(t, err)
	_, err = e.guide.RespondToBooking(ctx, b.ID, domain.DecisionAccept)
	require.NoError(t, err)
	_, err = e.guide.CompleteTour(ctx, b.ID)
	require.NoError(t, err)

	got, err := e.user.MarkUserPayment(ctx, b.ID, domain.PaymentMethodOnline, 300, 4.5)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, 4.5, got.Rating)
}

func TestMarkUserPayment_ratingOutOfRangeRejectedLocally(t *testing.T) {
	e := newEnv(t)

	before := e.requests.Load()
	_, err := e.user.MarkUserPayment(context.Background(), "id", domain.PaymentMethodCash, 100, 5.5)

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, before, e.requests.Load())
}

// ---- lists and search ------------------------------------------------------

func TestGetUserBookings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.user.RequestBooking(ctx, validRequest())
	require.NoError(t, err)

	got, err := e.user.GetUserBookings(ctx)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Everest Base Camp", got[0].Destination)
}

func TestGuideRequestViews(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.user.RequestBooking(ctx, validRequest())
	require.NoError(t, err)

	mine, err := e.guide.GetGuideRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := e.guide.GetAllRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Regular users have no business listing every request.
	_, err = e.user.GetAllRequests(ctx)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSearchBookings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.user.RequestBooking(ctx, validRequest())
	require.NoError(t, err)

	hits, err := e.guide.SearchBookings(ctx, domain.SearchFilters{Destination: "everest"})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	misses, err := e.guide.SearchBookings(ctx, domain.SearchFilters{Destination: "mustang"})
	require.NoError(t, err)
	assert.Empty(t, misses)

	byStatus, err := e.guide.SearchBookings(ctx, domain.SearchFilters{Status: domain.StatusDeclined})
	require.NoError(t, err)
	assert.Empty(t, byStatus)
}

// ---- error normalization ---------------------------------------------------

// TestNoToken_shortCircuits: a session without a credential must fail before
// any I/O happens.
func TestNoToken_shortCircuits(t *testing.T) {
	e := newEnv(t)
	c := client.New(e.ts.URL, session.Static{})

	before := e.requests.Load()
	_, err := c.GetLatestBooking(context.Background())

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, before, e.requests.Load())
}

func TestUnknownToken_unauthorized(t *testing.T) {
	e := newEnv(t)
	c := client.New(e.ts.URL, session.Static{BearerToken: "stale-token"})

	_, err := c.GetUserBookings(context.Background())

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestServerError_mapped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)
	c := client.New(ts.URL, session.Static{BearerToken: "x"})

	_, err := c.GetUserBookings(context.Background())

	assert.ErrorIs(t, err, domain.ErrServer)
}

// TestNetworkError_mapped: a dead endpoint must come back as ErrNetwork, not
// a raw *url.Error.
func TestNetworkError_mapped(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close() // nothing listens anymore

	c := client.New(ts.URL, session.Static{BearerToken: "x"})

	_, err := c.GetLatestBooking(context.Background())

	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestGarbageResponse_mappedToServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>definitely not json</html>"))
	}))
	t.Cleanup(ts.Close)
	c := client.New(ts.URL, session.Static{BearerToken: "x"})

	_, err := c.GetUserBookings(context.Background())

	assert.ErrorIs(t, err, domain.ErrServer)
}
