// Package bookingtest provides an in-memory fake of the NepTrip booking
// backend for tests and local development. It implements every endpoint the
// client consumes, including the server-side rules the real backend must
// enforce — most importantly the at-most-one-active-booking-per-requester
// invariant, which a client-side check alone cannot guarantee when the same
// account requests from two devices.
package bookingtest

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/NakarmiKevus/neptrip-booking/internal/domain"
)

// Actor is a credential the fake backend recognizes. Register actors with
// Server.AddActor; the token doubles as the bearer credential.
type Actor struct {
	Token  string
	UserID string
	Role   string // "user", "guide" or "admin"
}

// Server is the fake backend. Mount Handler() on an httptest.Server and point
// a client at its URL. All methods are safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	actors   map[string]Actor           // token -> actor
	bookings map[string]*domain.Booking // id -> booking
	byUser   map[string][]string        // requester id -> booking ids, oldest first
	guide    *domain.Guide              // the guide assigned to new bookings
}

// NewServer returns an empty fake backend with a default guide on staff.
func NewServer() *Server {
	return &Server{
		actors:   make(map[string]Actor),
		bookings: make(map[string]*domain.Booking),
		byUser:   make(map[string][]string),
		guide: &domain.Guide{
			ID:       uuid.NewString(),
			FullName: "Pemba Sherpa",
			Email:    "pemba@neptrip.example",
			Phone:    "+977-9800000000",
		},
	}
}

// AddActor registers a credential. Returns the actor for convenience.
func (s *Server) AddActor(a Actor) Actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[a.Token] = a
	return a
}

// Guide returns the guide assigned to new bookings.
func (s *Server) Guide() domain.Guide {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.guide
}

// Booking returns a copy of a stored booking, for assertions.
func (s *Server) Booking(id string) (domain.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, false
	}
	return *b, true
}

// Handler returns the HTTP handler implementing the booking API surface.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.auth)

	r.Post("/request", s.handleRequest)
	r.Get("/requests", s.handleGuideRequests)
	r.Get("/all-requests", s.handleAllRequests)
	r.Put("/respond/{id}", s.handleRespond)
	r.Put("/complete/{id}", s.handleComplete)
	r.Get("/user-bookings", s.handleUserBookings)
	r.Get("/status/{id}", s.handleStatus)
	r.Get("/latest-booking", s.handleLatest)
	r.Get("/search", s.handleSearch)
	r.Put("/payment/{id}", s.handlePayment)
	r.Put("/payment-method/{id}", s.handlePaymentMethod)
	r.Put("/mark-user-payment/{id}", s.handleMarkUserPayment)

	return r
}

// auth resolves the bearer token to a registered actor, rejecting anything
// else with 401 — the same contract the real backend exposes.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		s.mu.Lock()
		actor, ok := s.actors[token]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "unknown token")
			return
		}
		next.ServeHTTP(w, withActor(r, actor))
	})
}

func withActor(r *http.Request, a Actor) *http.Request {
	return r.WithContext(contextWithActor(r.Context(), a))
}

// --- handlers ---------------------------------------------------------------

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())

	var req domain.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if req.Destination == "" || req.FullName == "" || req.PeopleCount < 1 {
		writeError(w, http.StatusBadRequest, "missing required booking fields")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Server-side single-active-booking rule. This is the authoritative
	// check; the client's local refusal is only an optimization.
	for _, id := range s.byUser[actor.UserID] {
		if s.bookings[id].Status.IsActive() {
			writeError(w, http.StatusConflict, "an active booking already exists for this user")
			return
		}
	}

	now := time.Now().UTC()
	g := *s.guide
	b := &domain.Booking{
		ID:            uuid.NewString(),
		FullName:      req.FullName,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		Destination:   req.Destination,
		Date:          req.Date,
		PeopleCount:   req.PeopleCount,
		Guide:         &g,
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentUnspecified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.bookings[b.ID] = b
	s.byUser[actor.UserID] = append(s.byUser[actor.UserID], b.ID)

	writeBooking(w, http.StatusCreated, b)
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	d := domain.Decision(body.Status)
	if !d.Valid() {
		writeError(w, http.StatusBadRequest, "status must be accepted or declined")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	if actor.Role != RoleGuide || b.Guide == nil || b.Guide.ID != actor.UserID {
		writeError(w, http.StatusForbidden, "only the assigned guide may respond")
		return
	}
	if !b.Status.CanTransitionTo(domain.Status(d)) {
		writeError(w, http.StatusConflict, "booking is not pending")
		return
	}
	b.Status = domain.Status(d)
	b.UpdatedAt = time.Now().UTC()
	writeBooking(w, http.StatusOK, b)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	assignedGuide := b.Guide != nil && b.Guide.ID == actor.UserID
	requester := s.owns(actor.UserID, b.ID)
	if !assignedGuide && !requester {
		writeError(w, http.StatusForbidden, "only the guide or the requester may complete")
		return
	}
	if !b.Status.CanTransitionTo(domain.StatusCompleted) {
		writeError(w, http.StatusConflict, "booking is not accepted")
		return
	}
	b.Status = domain.StatusCompleted
	b.UpdatedAt = time.Now().UTC()
	writeBooking(w, http.StatusOK, b)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": b.Status})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	if actor.Role == RoleGuide {
		for id, b := range s.bookings {
			if b.Guide != nil && b.Guide.ID == actor.UserID {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool {
			return s.bookings[ids[i]].CreatedAt.Before(s.bookings[ids[j]].CreatedAt)
		})
	} else {
		ids = s.byUser[actor.UserID]
	}
	if len(ids) == 0 {
		// Absence is signaled with 404; the client maps it to (nil, nil).
		writeError(w, http.StatusNotFound, "no booking found")
		return
	}
	writeBooking(w, http.StatusOK, s.bookings[ids[len(ids)-1]])
}

func (s *Server) handleUserBookings(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Booking, 0, len(s.byUser[actor.UserID]))
	for _, id := range s.byUser[actor.UserID] {
		out = append(out, *s.bookings[id])
	}
	writeBookings(w, out)
}

func (s *Server) handleGuideRequests(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if actor.Role != RoleGuide {
		writeError(w, http.StatusForbidden, "guides only")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.Guide != nil && b.Guide.ID == actor.UserID {
			out = append(out, *b)
		}
	}
	sortByCreation(out)
	writeBookings(w, out)
}

func (s *Server) handleAllRequests(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if actor.Role != RoleGuide && actor.Role != RoleAdmin {
		writeError(w, http.StatusForbidden, "guides and admins only")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, *b)
	}
	sortByCreation(out)
	writeBookings(w, out)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if dest := q.Get("destination"); dest != "" &&
			!strings.Contains(strings.ToLower(b.Destination), strings.ToLower(dest)) {
			continue
		}
		if st := q.Get("status"); st != "" && string(b.Status) != st {
			continue
		}
		if date := q.Get("date"); date != "" && b.Date != date {
			continue
		}
		out = append(out, *b)
	}
	sortByCreation(out)
	writeBookings(w, out)
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	var p domain.Payment
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if p.Amount < 0 {
		writeError(w, http.StatusBadRequest, "payment amount must be >= 0")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	if b.Status != domain.StatusAccepted {
		writeError(w, http.StatusConflict, "payment only updatable on accepted bookings")
		return
	}
	if p.Method != "" {
		b.PaymentMethod = p.Method
	}
	b.PaymentStatus = p.Status
	b.PaymentAmount = p.Amount
	b.UpdatedAt = time.Now().UTC()
	writeBooking(w, http.StatusOK, b)
}

func (s *Server) handlePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Method string `json:"paymentMethod"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	b.PaymentMethod = domain.PaymentMethod(body.Method)
	b.UpdatedAt = time.Now().UTC()
	writeBooking(w, http.StatusOK, b)
}

func (s *Server) handleMarkUserPayment(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	var body struct {
		Method string  `json:"paymentMethod"`
		Amount float64 `json:"paymentAmount"`
		Rating float64 `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if body.Rating < 0 || body.Rating > 5 {
		writeError(w, http.StatusBadRequest, "rating must be between 0 and 5")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	if !s.owns(actor.UserID, b.ID) {
		writeError(w, http.StatusForbidden, "only the requester may confirm payment")
		return
	}
	if b.Status != domain.StatusAccepted && b.Status != domain.StatusCompleted {
		writeError(w, http.StatusConflict, "booking is not payable")
		return
	}
	b.PaymentMethod = domain.PaymentMethod(body.Method)
	b.PaymentStatus = domain.PaymentPaid
	b.PaymentAmount = body.Amount
	b.Rating = body.Rating
	b.UpdatedAt = time.Now().UTC()

	// Fold the rating into the guide's aggregate.
	if b.Guide != nil && s.guide.ID == b.Guide.ID {
		total := s.guide.AvgRating*float64(s.guide.RatingsCount) + body.Rating
		s.guide.RatingsCount++
		s.guide.AvgRating = total / float64(s.guide.RatingsCount)
	}

	writeBooking(w, http.StatusOK, b)
}

// owns reports whether userID is the requester of booking id.
// Caller must hold s.mu.
func (s *Server) owns(userID, id string) bool {
	for _, bid := range s.byUser[userID] {
		if bid == id {
			return true
		}
	}
	return false
}

func sortByCreation(bs []domain.Booking) {
	sort.Slice(bs, func(i, j int) bool { return bs[i].CreatedAt.Before(bs[j].CreatedAt) })
}

// --- response helpers -------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBooking(w http.ResponseWriter, status int, b *domain.Booking) {
	writeJSON(w, status, map[string]any{"success": true, "booking": b})
}

func writeBookings(w http.ResponseWriter, bs []domain.Booking) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bookings": bs})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}
