package lockout

import (
	"context"
	"sync"
	"time"
)

type record struct {
	failures    int
	lockedUntil *time.Time
}

// InMemoryStore is a mutex-guarded lockout tracker for tests and
// single-instance deployments.
type InMemoryStore struct {
	mu        sync.Mutex
	records   map[string]*record
	threshold int
	duration  time.Duration
	clock     func() time.Time
}

type MemoryOption func(*InMemoryStore)

func WithThreshold(n int) MemoryOption {
	return func(s *InMemoryStore) { s.threshold = n }
}

func WithDuration(d time.Duration) MemoryOption {
	return func(s *InMemoryStore) { s.duration = d }
}

// WithClock overrides the time source. Tests use this to cross lock expiry
// without sleeping.
func WithClock(clock func() time.Time) MemoryOption {
	return func(s *InMemoryStore) { s.clock = clock }
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		records:   make(map[string]*record),
		threshold: DefaultThreshold,
		duration:  DefaultDuration,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) RecordFailure(_ context.Context, identifier string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[identifier]
	if !ok {
		rec = &record{}
		s.records[identifier] = rec
	}
	rec.failures++
	if rec.failures >= s.threshold && rec.lockedUntil == nil {
		until := s.clock().Add(s.duration)
		rec.lockedUntil = &until
	}
	return rec.failures, nil
}

func (s *InMemoryStore) IsLocked(_ context.Context, identifier string) (bool, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[identifier]
	if !ok || rec.lockedUntil == nil {
		return false, nil, nil
	}
	if s.clock().After(*rec.lockedUntil) {
		delete(s.records, identifier)
		return false, nil, nil
	}
	until := *rec.lockedUntil
	return true, &until, nil
}

func (s *InMemoryStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
	return nil
}
