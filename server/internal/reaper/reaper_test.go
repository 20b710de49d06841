package reaper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSweeper fails on the calls listed in failOn (1-based) and otherwise
// reports removing one entry.
type fakeSweeper struct {
	calls  atomic.Int64
	failOn map[int64]bool
}

func (f *fakeSweeper) Sweep(context.Context) (int, error) {
	n := f.calls.Add(1)
	if f.failOn[n] {
		return 0, errors.New("disk on fire")
	}
	return 1, nil
}

type recorder struct {
	mu      sync.Mutex
	removed int
	errs    int
}

func (r *recorder) ObserveSweep(removed int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed += removed
	if err != nil {
		r.errs++
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNew_DefaultInterval(t *testing.T) {
	r := New(&fakeSweeper{}, 0)
	if r.interval != DefaultInterval {
		t.Errorf("interval: got %v, want %v", r.interval, DefaultInterval)
	}
}

func TestRun_SweepsPeriodically(t *testing.T) {
	fs := &fakeSweeper{}
	r := New(fs, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	waitFor(t, func() bool { return fs.calls.Load() >= 3 })
}

func TestRun_ContinuesAfterFailure(t *testing.T) {
	fs := &fakeSweeper{failOn: map[int64]bool{1: true, 2: true}}
	rec := &recorder{}
	r := New(fs, 10*time.Millisecond, WithObserver(rec))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	waitFor(t, func() bool { return fs.calls.Load() >= 4 })

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.errs < 2 {
		t.Errorf("observed errors: got %d, want >= 2", rec.errs)
	}
	if rec.removed < 2 {
		t.Errorf("observed removals: got %d, want >= 2", rec.removed)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	r := New(&fakeSweeper{}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSetInterval_AppliesToRunningLoop(t *testing.T) {
	fs := &fakeSweeper{}
	r := New(fs, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.SetInterval(10 * time.Millisecond)
	waitFor(t, func() bool { return fs.calls.Load() >= 2 })
}

func TestSetInterval_KeepsLatest(t *testing.T) {
	r := New(&fakeSweeper{}, time.Hour)
	r.SetInterval(time.Minute)
	r.SetInterval(2 * time.Minute)
	r.SetInterval(-1)

	select {
	case d := <-r.reset:
		if d != 2*time.Minute {
			t.Errorf("pending interval: got %v, want 2m", d)
		}
	default:
		t.Fatal("no pending interval")
	}
}

func TestSweepOnce_ReturnsResult(t *testing.T) {
	fs := &fakeSweeper{failOn: map[int64]bool{2: true}}
	r := New(fs, time.Hour)

	if n, err := r.SweepOnce(context.Background()); n != 1 || err != nil {
		t.Errorf("first: got (%d, %v), want (1, nil)", n, err)
	}
	if _, err := r.SweepOnce(context.Background()); err == nil {
		t.Error("second: expected error")
	}
}
