package cache

import (
	"fmt"
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a process-local TTL cache for follower state that is read on
// every fan-out but changes slowly (follower lists, equity, per-follower
// config). Safe for concurrent use. Callers must invalidate keys on known
// mutations; the background sweep only reclaims memory.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
}

func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
	}
}

// Get returns the value for key, or false when absent or expired. Expired
// entries are deleted on read, so a missed Get never resurrects old state.
func (c *Cache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	item, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(item.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, ok := c.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return item.value, true
}

// Set stores value under key with the cache's default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetTTL(key, value, 0)
}

// SetTTL stores value under key with an explicit TTL. ttl <= 0 falls back
// to the default.
func (c *Cache) SetTTL(key string, value any, ttl time.Duration) {
	if c == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *Cache) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// ClearExpired removes all expired entries and returns how many were
// dropped. Run periodically by the cache sweep job.
func (c *Cache) ClearExpired() int {
	if c == nil {
		return 0
	}
	now := time.Now()
	removed := 0
	c.mu.Lock()
	for key, item := range c.entries {
		if now.After(item.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()
	return removed
}

// Len reports the number of live plus not-yet-swept entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Key builders. Keeping them here keeps key formats in one place so
// invalidation sites cannot drift from read sites.

func FollowersKey(strategyID uint64) string {
	return fmt.Sprintf("strategy:followers:%d", strategyID)
}

func EquityKey(followerUserID string) string {
	return fmt.Sprintf("follower:equity:%s", followerUserID)
}

func SubscriptionKey(strategyID uint64, followerUserID string) string {
	return fmt.Sprintf("subscription:%d:%s", strategyID, followerUserID)
}
