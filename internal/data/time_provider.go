package data

import (
	"sync"
	"time"
)

// TimeProvider abstracts the clock so schedulers and repositories can be
// tested against a controlled time source.
type TimeProvider interface {
	// Now returns the current time.
	Now() time.Time
}

// RealTimeProvider implements TimeProvider using the system clock.
type RealTimeProvider struct{}

// Now returns the current system time.
func (r *RealTimeProvider) Now() time.Time {
	return time.Now()
}

// FakeTimeProvider implements TimeProvider with a settable clock for tests.
// Safe for concurrent use so loops under test can read it while the test
// advances it.
type FakeTimeProvider struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeTimeProvider creates a FakeTimeProvider pinned at t.
func NewFakeTimeProvider(t time.Time) *FakeTimeProvider {
	return &FakeTimeProvider{now: t}
}

// Now returns the fake clock's current time.
func (f *FakeTimeProvider) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set pins the clock at t.
func (f *FakeTimeProvider) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the clock forward by d.
func (f *FakeTimeProvider) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
