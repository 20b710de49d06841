package store

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Snapshotter persists and reloads the full record set. Save always receives
// the complete mapping; implementations replace whatever they held before.
type Snapshotter interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, records map[string]string) error
}

// Store is a thread-safe mapping from UID to Policy with write-through
// snapshot persistence.
type Store struct {
	mu   sync.RWMutex
	data map[string]Policy

	snap    Snapshotter
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time // injectable for deterministic tests
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the location used to encode and decode durable timestamps.
// Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithTimeout bounds every snapshot Load and Save. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// Open loads the record set from snap and returns a ready Store.
func Open(ctx context.Context, snap Snapshotter, opts ...Option) (*Store, error) {
	s := &Store{
		data: make(map[string]Policy),
		snap: snap,
		loc:  time.Local,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	records, err := snap.Load(ctx)
	if err != nil {
		return nil, &PersistError{Op: "load", Err: err}
	}
	for uid, raw := range records {
		p, err := ParsePolicy(raw, s.loc)
		if err != nil {
			return nil, &PersistError{Op: "load", Err: err}
		}
		s.data[uid] = p
	}
	return s, nil
}

// Register validates the raw boundary values and upserts uid.
func (s *Store) Register(ctx context.Context, uid string, permanent bool, amount, unit string) (Policy, error) {
	if uid == "" {
		return Policy{}, ErrMissingUID
	}
	spec, err := ParseSpec(permanent, amount, unit)
	if err != nil {
		return Policy{}, err
	}
	return s.Upsert(ctx, uid, spec)
}

// Upsert replaces the policy for uid and persists the full mapping before
// returning. It returns the policy actually stored.
func (s *Store) Upsert(ctx context.Context, uid string, spec Spec) (Policy, error) {
	if uid == "" {
		return Policy{}, ErrMissingUID
	}
	p, err := spec.policy(s.now())
	if err != nil {
		return Policy{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.data)
	next[uid] = p
	if err := s.commit(ctx, "upsert", next); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Lookup returns the stored policy for uid.
func (s *Store) Lookup(uid string) (Policy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[uid]
	return p, ok
}

// RemainingTime returns the time left before uid expires. Unknown UIDs yield
// Unregistered; this is not an error.
func (s *Store) RemainingTime(uid string) Breakdown {
	p, ok := s.Lookup(uid)
	if !ok {
		return Unregistered
	}
	return Remaining(p, s.now())
}

// Sweep removes every expiring entry whose instant is at or before now and
// returns how many were removed. The mapping is persisted only when something
// was removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]Policy, len(s.data))
	for uid, p := range s.data {
		if !p.Expired(now) {
			next[uid] = p
		}
	}
	removed := len(s.data) - len(next)
	if removed == 0 {
		return 0, nil
	}
	if err := s.commit(ctx, "sweep", next); err != nil {
		return 0, err
	}
	return removed, nil
}

// Format renders p in the store's durable encoding.
func (s *Store) Format(p Policy) string {
	return p.Format(s.loc)
}

// Len returns the number of entries, including expired ones not yet swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Counts returns the total number of entries and how many are permanent.
func (s *Store) Counts() (total, permanent int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.data {
		if p.Permanent {
			permanent++
		}
	}
	return len(s.data), permanent
}

// commit persists next and installs it as the live mapping. Callers hold mu.
func (s *Store) commit(ctx context.Context, op string, next map[string]Policy) error {
	records := make(map[string]string, len(next))
	for uid, p := range next {
		records[uid] = p.Format(s.loc)
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if err := s.snap.Save(ctx, records); err != nil {
		return &PersistError{Op: op, Err: err}
	}
	s.data = next
	return nil
}

func (s *Store) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}
