package memory

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/arklim/autodoc-access/internal/core/port"
)

// RateLimitStore keeps sliding-window attempts per identifier in process.
type RateLimitStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

// NewRateLimitStore returns an empty attempt table.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{attempts: make(map[string][]time.Time)}
}

// RecordAttempt stores an attempt, keeping the identifier's attempts ordered by time.
func (s *RateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.attempts[identifier]
	idx, _ := slices.BinarySearchFunc(list, at, func(a, b time.Time) int { return a.Compare(b) })
	s.attempts[identifier] = slices.Insert(list, idx, at)
	return nil
}

// CountAttempts returns the attempts within [reference-window, reference].
func (s *RateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, at := range s.attempts[identifier] {
		if inWindow(at, window, reference) {
			count++
		}
	}
	return count, nil
}

// TrimWindow drops attempts older than reference-window and forgets empty identifiers.
func (s *RateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := reference.Add(-window)
	kept := slices.DeleteFunc(s.attempts[identifier], func(at time.Time) bool { return at.Before(threshold) })
	if len(kept) == 0 {
		delete(s.attempts, identifier)
		return nil
	}
	s.attempts[identifier] = kept
	return nil
}

// OldestAttempt returns the earliest attempt inside the window, if any.
func (s *RateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errors.New("window must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, at := range s.attempts[identifier] {
		if inWindow(at, window, reference) {
			return at, true, nil
		}
	}
	return time.Time{}, false, nil
}

func inWindow(at time.Time, window time.Duration, reference time.Time) bool {
	return !at.Before(reference.Add(-window)) && !at.After(reference)
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)
