// Package reaper runs the background expiry sweep.
package reaper

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is used when New is given a non-positive interval.
const DefaultInterval = 5 * time.Second

// Sweeper removes expired entries and reports how many it removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Observer is notified after every sweep, successful or not.
type Observer interface {
	ObserveSweep(removed int, err error)
}

// Reaper calls Sweep on a fixed interval, independent of request traffic.
// A failed sweep is logged and the next tick proceeds as usual.
type Reaper struct {
	sweeper  Sweeper
	observer Observer
	interval time.Duration
	reset    chan time.Duration
}

// Option configures a Reaper.
type Option func(*Reaper)

// WithObserver registers o to be notified after each sweep.
func WithObserver(o Observer) Option {
	return func(r *Reaper) { r.observer = o }
}

// New creates a Reaper that sweeps s every interval.
func New(s Sweeper, interval time.Duration, opts ...Option) *Reaper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	r := &Reaper{
		sweeper:  s,
		interval: interval,
		reset:    make(chan time.Duration, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	slog.Info("reaper: started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("reaper: stopped")
			return
		case d := <-r.reset:
			t.Reset(d)
			slog.Info("reaper: interval changed", "interval", d)
		case <-t.C:
			r.SweepOnce(ctx) //nolint:errcheck
		}
	}
}

// SetInterval changes the sweep cadence of a running loop. Non-positive
// values are ignored. Only the most recent pending value is applied.
func (r *Reaper) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	for {
		select {
		case r.reset <- d:
			return
		default:
		}
		select {
		case <-r.reset:
		default:
		}
	}
}

// SweepOnce runs a single sweep and logs its outcome.
func (r *Reaper) SweepOnce(ctx context.Context) (int, error) {
	n, err := r.sweeper.Sweep(ctx)
	if r.observer != nil {
		r.observer.ObserveSweep(n, err)
	}
	switch {
	case err != nil:
		slog.Error("reaper: sweep failed", "err", err)
	case n > 0:
		slog.Info("reaper: removed expired uids", "count", n)
	default:
		slog.Debug("reaper: nothing expired")
	}
	return n, err
}
