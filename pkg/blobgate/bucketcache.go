package blobgate

import "sync"

// BucketCache remembers bucket names already verified to exist so the
// orchestrator can skip redundant existence checks. It is an explicit,
// injected dependency: callers decide whether orchestrator instances
// share one. The cache is capacity-bounded; when full, an arbitrary
// entry is evicted (a re-check is cheap and idempotent).
type BucketCache struct {
	mu       sync.Mutex
	capacity int
	names    map[string]struct{}
}

const defaultBucketCacheCapacity = 1024

// NewBucketCache creates a cache holding at most capacity names.
// capacity <= 0 selects the default.
func NewBucketCache(capacity int) *BucketCache {
	if capacity <= 0 {
		capacity = defaultBucketCacheCapacity
	}
	return &BucketCache{
		capacity: capacity,
		names:    make(map[string]struct{}, capacity),
	}
}

// Contains reports whether the bucket was previously marked verified.
func (c *BucketCache) Contains(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.names[name]
	return ok
}

// Add marks a bucket as verified.
func (c *BucketCache) Add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.names[name]; ok {
		return
	}
	if len(c.names) >= c.capacity {
		for k := range c.names {
			delete(c.names, k)
			break
		}
	}
	c.names[name] = struct{}{}
}

// Len returns the number of cached names.
func (c *BucketCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.names)
}
