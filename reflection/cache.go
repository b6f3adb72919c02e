package reflection

import (
	"github.com/hashicorp/golang-lru/simplelru"
)

// DefaultCacheSize bounds each worker's resolution cache.
const DefaultCacheSize = 100

// MethodDescriptor is the cache key of a resolution: member kind and name, the
// declaring class and the argument type tuple.
type MethodDescriptor struct {
	Kind  MemberKind
	Name  string
	Class *Class
	Args  string
}

// ResolutionCache remembers valid invokers. It is owned by a single worker and
// is not safe for concurrent use, so lookups never take a lock.
type ResolutionCache struct {
	lru *simplelru.LRU
}

// NewResolutionCache returns a cache holding at most size invokers.
func NewResolutionCache(size int) *ResolutionCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	l, err := simplelru.NewLRU(size, nil)
	if err != nil {
		panic(err)
	}
	return &ResolutionCache{lru: l}
}

// Get returns a cached invoker.
func (c *ResolutionCache) Get(key MethodDescriptor) (*MethodInvoker, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*MethodInvoker), true
}

// Add stores a valid invoker.
func (c *ResolutionCache) Add(key MethodDescriptor, mi *MethodInvoker) {
	if c == nil || mi == nil {
		return
	}
	c.lru.Add(key, mi)
}

// Len returns the number of cached invokers.
func (c *ResolutionCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
