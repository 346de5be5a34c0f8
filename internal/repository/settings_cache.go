package repository

import (
	"sync"
	"time"
)

// SettingsCache holds a snapshot of every guild's settings. A snapshot is
// considered stale once it is older than the configured TTL.
type SettingsCache struct {
	mu       sync.RWMutex
	values   map[string]map[string]string
	loadedAt time.Time
	ttl      time.Duration
	now      func() time.Time
}

func NewSettingsCache(ttl time.Duration) *SettingsCache {
	return &SettingsCache{
		values: make(map[string]map[string]string),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Get returns a guild setting and whether the snapshot is still fresh.
func (c *SettingsCache) Get(guildID, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := c.values[guildID][key]
	return v, c.freshLocked()
}

func (c *SettingsCache) Guild(guildID string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.values[guildID]))
	for k, v := range c.values[guildID] {
		out[k] = v
	}
	return out
}

func (c *SettingsCache) GuildIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.values))
	for id := range c.values {
		ids = append(ids, id)
	}
	return ids
}

// Fresh reports whether the snapshot was loaded within the TTL.
func (c *SettingsCache) Fresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.freshLocked()
}

func (c *SettingsCache) freshLocked() bool {
	return !c.loadedAt.IsZero() && c.now().Sub(c.loadedAt) < c.ttl
}

// Replace swaps in a full snapshot loaded from the database.
func (c *SettingsCache) Replace(all map[string]map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = all
	if c.values == nil {
		c.values = make(map[string]map[string]string)
	}
	c.loadedAt = c.now()
}

// Put writes one value through without resetting the snapshot age.
func (c *SettingsCache) Put(guildID, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values[guildID] == nil {
		c.values[guildID] = make(map[string]string)
	}
	c.values[guildID][key] = value
}

func (c *SettingsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadedAt = time.Time{}
}

// Size returns the number of cached guilds.
func (c *SettingsCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
