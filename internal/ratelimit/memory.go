package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Entry is the fixed-window state for one key.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Memory is a per-process fixed-window limiter. Windows are not shared
// between instances.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
	max     int
	window  time.Duration
	now     func() time.Time
}

type MemoryOption func(*Memory)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(max int, window time.Duration, opts ...MemoryOption) *Memory {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	m := &Memory{
		entries: make(map[string]Entry),
		max:     max,
		window:  window,
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

var _ Limiter = (*Memory)(nil)

// Check counts one submission for key. An expired window is replaced, never incremented.
func (m *Memory) Check(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[key]
	if !ok || now.After(e.ResetAt) {
		e = Entry{Count: 1, ResetAt: now.Add(m.window)}
		m.entries[key] = e
		return Decision{Allowed: true, Remaining: m.max - 1, ResetAt: e.ResetAt}, nil
	}

	if e.Count >= m.max {
		return Decision{Allowed: false, Remaining: 0, ResetAt: e.ResetAt}, nil
	}

	e.Count++
	m.entries[key] = e
	return Decision{Allowed: true, Remaining: m.max - e.Count, ResetAt: e.ResetAt}, nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for k, e := range m.entries {
		if now.After(e.ResetAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Len reports the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (m *Memory) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			m.Sweep()
		}
	}
}
