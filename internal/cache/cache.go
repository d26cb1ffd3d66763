// Package cache is the response cache for computed query results. Entries
// expire by TTL; the only other invalidation path is an explicit ClearAll.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Manager is a TTL-bounded in-process cache. It can be disabled at runtime,
// which turns every operation into a no-op without dropping stored entries.
type Manager struct {
	cache   *ttlcache.Cache[string, any]
	enabled atomic.Bool
}

// NewManager creates a cache with the given entry TTL.
func NewManager(ttl time.Duration) *Manager {
	c := ttlcache.New(
		ttlcache.WithTTL[string, any](ttl),
	)
	go c.Start()

	m := &Manager{cache: c}
	m.enabled.Store(true)
	return m
}

// Get returns the cached value for a key, if present and not expired.
func (m *Manager) Get(key string) (any, bool) {
	if !m.enabled.Load() {
		return nil, false
	}
	item := m.cache.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Set stores a value under the key with the default TTL.
func (m *Manager) Set(key string, value any) {
	if !m.enabled.Load() {
		return
	}
	m.cache.Set(key, value, ttlcache.DefaultTTL)
}

// ClearAll drops every cached entry.
func (m *Manager) ClearAll() {
	m.cache.DeleteAll()
}

// SetEnabled toggles the cache at runtime.
func (m *Manager) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

// Stop shuts down the expiration loop.
func (m *Manager) Stop() {
	m.cache.Stop()
}
