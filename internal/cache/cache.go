// Package cache holds the process-wide TTL caches the screener shares
// across concurrent workers. A Service is built once at start-up and
// injected; nothing here is a package-level global.
package cache

import (
	"sync"
	"time"

	"volscreener/internal/model"
)

// TTLMap is a string-keyed map whose entries expire individually.
// Writes to different keys never interfere; a read racing a write on the
// same key sees either the old or the new value.
type TTLMap[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry[V]
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// NewTTLMap creates an empty map with the given entry lifetime.
func NewTTLMap[V any](ttl time.Duration) *TTLMap[V] {
	return &TTLMap[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the value for key if it was stored less than ttl ago.
func (m *TTLMap[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.now().Sub(e.storedAt) >= m.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set upserts key with a fresh timestamp.
func (m *TTLMap[V]) Set(key string, v V) {
	m.mu.Lock()
	m.entries[key] = entry[V]{value: v, storedAt: m.now()}
	m.mu.Unlock()
}

// Len counts entries, expired ones included.
func (m *TTLMap[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Prune drops expired entries and returns how many were removed.
func (m *TTLMap[V]) Prune() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if now.Sub(e.storedAt) >= m.ttl {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Value is a single TTL-gated slot, replaced wholesale on Set.
type Value[V any] struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	value    V
	storedAt time.Time
	set      bool
}

// NewValue creates an empty slot with the given lifetime.
func NewValue[V any](ttl time.Duration) *Value[V] {
	return &Value[V]{ttl: ttl, now: time.Now}
}

// Get returns the stored value if it is younger than ttl.
func (v *Value[V]) Get() (V, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.set || v.now().Sub(v.storedAt) >= v.ttl {
		var zero V
		return zero, false
	}
	return v.value, true
}

// Set replaces the stored value.
func (v *Value[V]) Set(val V) {
	v.mu.Lock()
	v.value = val
	v.storedAt = v.now()
	v.set = true
	v.mu.Unlock()
}

// StoredAt returns when the value was last set, zero if never.
func (v *Value[V]) StoredAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.storedAt
}

// Service bundles the symbol and market-cap caches.
type Service struct {
	Symbols    *Value[model.Universe]
	MarketCaps *TTLMap[float64]
}

// NewService builds the caches with their lifetimes.
func NewService(symbolTTL, marketCapTTL time.Duration) *Service {
	return &Service{
		Symbols:    NewValue[model.Universe](symbolTTL),
		MarketCaps: NewTTLMap[float64](marketCapTTL),
	}
}

// SetClock replaces the time source on every cache. Intended for tests and
// replay tooling.
func (s *Service) SetClock(now func() time.Time) {
	s.Symbols.mu.Lock()
	s.Symbols.now = now
	s.Symbols.mu.Unlock()
	s.MarketCaps.mu.Lock()
	s.MarketCaps.now = now
	s.MarketCaps.mu.Unlock()
}
