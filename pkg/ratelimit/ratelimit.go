// Package ratelimit implements fixed-window request counting, keyed by an
// arbitrary string identity (IP address, email address, action name).
// Windows are non-overlapping buckets: the first attempt after a window has
// lapsed re-bases the window, and the count resets entirely.
package ratelimit

import (
	"sync"
	"time"
)

// Config is the policy for one limit class. MaxAttempts below 1 admits
// nothing.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Result is the outcome of a single Check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Entry is one key's counter within its current window.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Store holds rate-limit entries. The built-in MemoryStore is an in-process
// map; an external keyed store can be swapped in without changing call sites.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(key string) (Entry, bool)
	Set(key string, e Entry)
	Delete(key string)
	// DeleteExpired removes every entry whose window lapsed before 'now',
	// and returns the number of entries removed.
	DeleteExpired(now time.Time) int
}

// Limiter is a fixed-window rate limiter over a Store.
type Limiter struct {
	store Store
	now   func() time.Time

	// checkLock serializes window-reset-then-increment, so that concurrent
	// bursts on the same key can't lose updates.
	checkLock sync.Mutex

	sweepStop chan struct{}
	sweepDone chan struct{}
}

func NewLimiter() *Limiter {
	return NewLimiterWithStore(NewMemoryStore())
}

func NewLimiterWithStore(store Store) *Limiter {
	return &Limiter{
		store: store,
		now:   time.Now,
	}
}

// SetNowFunc overrides the limiter's clock (for tests).
func (l *Limiter) SetNowFunc(now func() time.Time) {
	l.now = now
}

// Check counts one attempt for 'key' against 'cfg', and reports whether the
// attempt is allowed. Counts are monotonically non-decreasing within a
// window. The caller must reject the request when Allowed is false, and can
// hand ResetAt to the client for backoff.
func (l *Limiter) Check(key string, cfg Config) Result {
	l.checkLock.Lock()
	defer l.checkLock.Unlock()

	now := l.now()
	if cfg.MaxAttempts < 1 {
		return Result{Allowed: false, Remaining: 0, ResetAt: now}
	}
	entry, ok := l.store.Get(key)
	if !ok || !entry.ResetAt.After(now) {
		entry = Entry{Count: 1, ResetAt: now.Add(cfg.Window)}
		l.store.Set(key, entry)
		return Result{Allowed: true, Remaining: cfg.MaxAttempts - 1, ResetAt: entry.ResetAt}
	}
	if entry.Count >= cfg.MaxAttempts {
		return Result{Allowed: false, Remaining: 0, ResetAt: entry.ResetAt}
	}
	entry.Count++
	l.store.Set(key, entry)
	return Result{Allowed: true, Remaining: cfg.MaxAttempts - entry.Count, ResetAt: entry.ResetAt}
}

// StartSweeper launches a background goroutine that periodically deletes
// entries whose window has lapsed. This bounds memory growth from unbounded
// distinct keys (eg hostile IP rotation). The interval is independent of any
// window length.
func (l *Limiter) StartSweeper(interval time.Duration) {
	if l.sweepStop != nil {
		return
	}
	l.sweepStop = make(chan struct{})
	l.sweepDone = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(l.sweepDone)
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-l.sweepStop:
				return
			}
		}
	}()
}

// Sweep deletes all expired entries immediately, and returns the number deleted.
func (l *Limiter) Sweep() int {
	l.checkLock.Lock()
	defer l.checkLock.Unlock()
	return l.store.DeleteExpired(l.now())
}

// Stop shuts the sweeper down, if it is running.
func (l *Limiter) Stop() {
	if l.sweepStop == nil {
		return
	}
	close(l.sweepStop)
	<-l.sweepDone
	l.sweepStop = nil
	l.sweepDone = nil
}

// MemoryStore is the default in-process Store.
type MemoryStore struct {
	lock    sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[string]Entry{},
	}
}

func (m *MemoryStore) Get(key string) (Entry, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	e, ok := m.entries[key]
	return e, ok
}

func (m *MemoryStore) Set(key string, e Entry) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.entries[key] = e
}

func (m *MemoryStore) Delete(key string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.entries, key)
}

func (m *MemoryStore) DeleteExpired(now time.Time) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	n := 0
	for key, e := range m.entries {
		if !e.ResetAt.After(now) {
			delete(m.entries, key)
			n++
		}
	}
	return n
}

// Len returns the number of live entries (includes expired, not yet swept).
func (m *MemoryStore) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.entries)
}
