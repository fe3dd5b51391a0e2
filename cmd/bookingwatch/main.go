// Package main is the entry point for bookingwatch, a terminal watcher for
// the current actor's booking. Its sole responsibility is wiring dependencies
// together and running the poller until interrupted. No business logic
// belongs here.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NakarmiKevus/neptrip-booking/internal/client"
	"github.com/NakarmiKevus/neptrip-booking/internal/config"
	"github.com/NakarmiKevus/neptrip-booking/internal/poller"
	"github.com/NakarmiKevus/neptrip-booking/internal/session"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	// log/slog JSON handler writes machine-readable output suitable for log
	// aggregators; bookingwatch's human-facing output goes to stdout below.
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Session ----------------------------------------------------------
	// The JWT session rejects an expired token here, before the first call.
	sess, err := session.NewJWT(cfg.Token)
	if err != nil {
		slog.Error("invalid token", "error", err)
		os.Exit(1)
	}
	if _, err := sess.Token(); err != nil {
		slog.Error("token not usable", "error", err)
		os.Exit(1)
	}
	slog.Info("session ready", "role", sess.Role(), "user_id", sess.UserID())

	// --- Client + poller --------------------------------------------------
	c := client.New(cfg.APIURL, sess,
		client.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		client.WithLogger(logger),
	)

	p := poller.New(c, poller.Options{
		Interval: cfg.PollInterval,
		Logger:   logger,
		OnUpdate: func(n poller.Notification) {
			fmt.Printf("booking %s is now %s (was %s)\n", n.Booking.ID, n.Current, n.Previous)
		},
		OnError: func(err error) {
			slog.Warn("poll failed, will retry", "error", err)
		},
	})

	// Show the starting point before the loop begins ticking.
	if b, err := c.GetLatestBooking(context.Background()); err != nil {
		slog.Warn("could not fetch latest booking", "error", err)
	} else if b == nil {
		fmt.Println("no booking yet")
	} else {
		fmt.Printf("watching booking %s to %s, currently %s\n", b.ID, b.Destination, b.Status)
		p.Observe(*b)
	}

	p.Start()
	defer p.Stop()

	// --- Shutdown ---------------------------------------------------------
	// Wait for an OS signal, then stop the poller; Stop blocks until no more
	// callbacks can fire, so the final print below is really final.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			p.Stop()
			fmt.Printf("stopped after %s\n", p.Elapsed())
			return
		case <-ticker.C:
			slog.Debug("still watching", "elapsed", p.Elapsed().String())
		}
	}
}
