package cache

import "time"

// SetClock overrides the cache clock so expiry tests do not sleep.
func (c *LRU[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
