// Package trustpool holds the in-memory view of per-node trust state that
// placement reads synchronously.
package trustpool

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/NordCoder/Trustwatch/internal/domain/trust"
)

type slot struct {
	e atomic.Pointer[trust.Entry]
}

// Cache maps host -> last known entry. The host set is guarded by mu; each
// entry is swapped atomically so updates to different hosts only share a read lock.
type Cache struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

func New() *Cache {
	return &Cache{slots: make(map[string]*slot)}
}

func newSlot(host string) *slot {
	s := &slot{}
	s.e.Store(&trust.Entry{Host: host, Level: trust.LevelUnknown, VTime: trust.Epoch})
	return s
}

// Seed adds hosts that are not yet known. Existing entries are untouched.
func (c *Cache) Seed(hosts []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range hosts {
		if h == "" {
			continue
		}
		if _, ok := c.slots[h]; !ok {
			c.slots[h] = newSlot(h)
		}
	}
}

// Reseed replaces the host set. Entries of hosts that stay keep their state.
func (c *Cache) Reseed(hosts []string) (added, removed []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make(map[string]*slot, len(hosts))
	for _, h := range hosts {
		if h == "" {
			continue
		}
		if s, ok := c.slots[h]; ok {
			next[h] = s
			continue
		}
		if _, dup := next[h]; !dup {
			next[h] = newSlot(h)
			added = append(added, h)
		}
	}
	for h := range c.slots {
		if _, ok := next[h]; !ok {
			removed = append(removed, h)
		}
	}
	c.slots = next
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// Update overwrites the entry of host. Last write wins by completion order.
// Hosts that are not part of the pool are ignored.
func (c *Cache) Update(host string, level trust.Level, observedAt time.Time) (prev trust.Entry, ok bool) {
	c.mu.RLock()
	s, ok := c.slots[host]
	c.mu.RUnlock()
	if !ok {
		return trust.Entry{}, false
	}
	old := s.e.Swap(&trust.Entry{Host: host, Level: level, VTime: observedAt.UTC()})
	return *old, true
}

func (c *Cache) Get(host string) (trust.Entry, bool) {
	c.mu.RLock()
	s, ok := c.slots[host]
	c.mu.RUnlock()
	if !ok {
		return trust.Entry{}, false
	}
	return *s.e.Load(), true
}

// GetAll returns a snapshot the caller may keep and modify.
func (c *Cache) GetAll() map[string]trust.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]trust.Entry, len(c.slots))
	for h, s := range c.slots {
		out[h] = *s.e.Load()
	}
	return out
}

// Hosts returns the known hosts in lexical order.
func (c *Cache) Hosts() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.slots))
	for h := range c.slots {
		out = append(out, h)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slots)
}
