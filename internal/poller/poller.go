// Package poller watches the current actor's latest booking by periodic
// re-fetching, since the backend offers no push channel. It detects status
// transitions and raises a notification exactly once per transition out of
// pending. One goroutine owns the loop, so fetches are serialized by
// construction — a slow fetch causes ticks to be dropped, never overlapped.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/NakarmiKevus/neptrip-booking/internal/domain"
)

// DefaultInterval is the fetch cadence when Options.Interval is zero.
const DefaultInterval = 5 * time.Second

// LatestFetcher fetches the most recent booking for the current actor.
// (nil, nil) means no booking exists yet. *client.Client satisfies this.
type LatestFetcher interface {
	GetLatestBooking(ctx context.Context) (*domain.Booking, error)
}

// Notification describes an observed status transition.
type Notification struct {
	Previous domain.Status
	Current  domain.Status
	Booking  domain.Booking
}

// Options configures a Poller. OnUpdate and OnError are invoked from the
// poller's own goroutine; they must not call Stop (deadlock) and should
// return promptly, since a slow callback delays the next fetch.
type Options struct {
	// Interval between fetches. Defaults to DefaultInterval.
	Interval time.Duration

	// OnUpdate fires when a fetched status differs from the cached one and
	// the cached one was pending — i.e. when the guide has answered.
	OnUpdate func(Notification)

	// OnError fires on each failed fetch. Errors are recoverable: the loop
	// always continues on the next tick.
	OnError func(error)

	// Logger for loop events. Defaults to slog.Default.
	Logger *slog.Logger
}

// Poller periodically fetches the latest booking and raises transition
// notifications. Construct with New, then Start. All exported methods are
// safe for concurrent use.
type Poller struct {
	fetch    LatestFetcher
	interval time.Duration
	onUpdate func(Notification)
	onError  func(error)
	log      *slog.Logger

	mu      sync.Mutex
	latest  *domain.Booking
	elapsed int64
	started bool
	stopped bool

	stop chan struct{}
	done chan struct{}
}

// New constructs a Poller over fetch. Nil callbacks are replaced with no-ops.
func New(fetch LatestFetcher, opts Options) *Poller {
	p := &Poller{
		fetch:    fetch,
		interval: opts.Interval,
		onUpdate: opts.OnUpdate,
		onError:  opts.OnError,
		log:      opts.Logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.onUpdate == nil {
		p.onUpdate = func(Notification) {}
	}
	if p.onError == nil {
		p.onError = func(error) {}
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

// Start launches the polling loop. The first fetch is issued immediately,
// then one per interval. Start is a no-op after the first call.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run()
}

// Stop halts the loop and both of its tickers. It blocks until the loop
// goroutine has exited, so no OnUpdate or OnError call happens after Stop
// returns. Safe to call multiple times, and before Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	close(p.stop)
	if !started {
		close(p.done)
		return
	}
	<-p.done
}

// Latest returns the cached booking from the most recent successful fetch
// (or Observe call). ok is false while nothing has been observed yet, or
// when the actor has no booking.
func (p *Poller) Latest() (b domain.Booking, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return domain.Booking{}, false
	}
	return *p.latest, true
}

// Observe applies a booking the caller already holds — typically the result
// of a mutating call like RespondToBooking — to the cache without waiting for
// the next tick. A transition already observed this way will not re-fire
// OnUpdate when the following fetch returns the same status.
func (p *Poller) Observe(b domain.Booking) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := b
	p.latest = &copied
}

// Elapsed returns whole seconds since Start, at one-second granularity.
// Display-only; it says nothing about booking state.
func (p *Poller) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.elapsed) * time.Second
}

// run is the single goroutine that owns fetching. Because fetches happen
// inline here, two can never be in flight at once; if one outlasts the
// interval, time.Ticker drops the missed ticks.
func (p *Poller) run() {
	defer close(p.done)

	fetchTick := time.NewTicker(p.interval)
	defer fetchTick.Stop()
	secTick := time.NewTicker(time.Second)
	defer secTick.Stop()

	p.poll()

	for {
		select {
		case <-p.stop:
			return
		case <-secTick.C:
			p.mu.Lock()
			p.elapsed++
			p.mu.Unlock()
		case <-fetchTick.C:
			// Re-check stop first: a tick and a Stop can race, and after
			// Stop wins no callback may fire.
			select {
			case <-p.stop:
				return
			default:
			}
			p.poll()
		}
	}
}

// poll performs one fetch and applies the result to the cache, firing
// OnUpdate when a pending booking has been answered.
func (p *Poller) poll() {
	// No per-fetch deadline here: the transport layer owns the timeout
	// (the HTTP client is constructed with one). A timed-out fetch comes
	// back as ErrNetwork and the loop carries on.
	b, err := p.fetch.GetLatestBooking(context.Background())
	if err != nil {
		p.log.Debug("poll fetch failed", "error", err)
		p.onError(err)
		return
	}

	var note *Notification
	p.mu.Lock()
	if b == nil {
		p.latest = nil
	} else {
		if p.latest != nil && p.latest.ID == b.ID &&
			p.latest.Status == domain.StatusPending && b.Status != p.latest.Status {
			note = &Notification{Previous: p.latest.Status, Current: b.Status, Booking: *b}
		}
		copied := *b
		p.latest = &copied
	}
	p.mu.Unlock()

	if note != nil {
		p.log.Info("booking status changed", "booking_id", note.Booking.ID,
			"from", note.Previous, "to", note.Current)
		p.onUpdate(*note)
	}
}
