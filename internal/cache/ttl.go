package cache

import (
	"strings"
	"sync"
	"time"

	"bizops-analytics/internal/metrics"
)

type entry struct {
	value     any
	expiresAt time.Time
}

const defaultMaxEntries = 500

// TTL is a small process-wide cache keyed by "prefix|business|parts...".
// When it grows past maxEntries it is reset wholesale.
type TTL struct {
	name       string
	mu         sync.Mutex
	entries    map[string]entry
	maxEntries int
	now        func() time.Time
}

func NewTTL(name string, maxEntries int) *TTL {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &TTL{name: name, entries: map[string]entry{}, maxEntries: maxEntries, now: time.Now}
}

func Key(prefix string, businessID string, parts ...string) string {
	segments := make([]string, 0, 2+len(parts))
	segments = append(segments, prefix, businessID)
	segments = append(segments, parts...)
	return strings.Join(segments, "|")
}

func (c *TTL) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && c.now().After(e.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	metrics.RecordCacheLookup(c.name, ok)
	if !ok {
		return nil, false
	}
	return e.value, true
}

func (c *TTL) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.entries = map[string]entry{}
	}
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
}

// InvalidateBusiness drops every key for the business, optionally limited to prefixes.
func (c *TTL) InvalidateBusiness(businessID string, prefixes ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		segments := strings.SplitN(key, "|", 3)
		if len(segments) < 2 || segments[1] != businessID {
			continue
		}
		if len(prefixes) > 0 && !containsString(prefixes, segments[0]) {
			continue
		}
		delete(c.entries, key)
		removed++
	}
	return removed
}

func (c *TTL) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]entry{}
}

func (c *TTL) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
