package cache

import (
	"fmt"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// LocalCache is a bounded in-memory map that evicts in insertion order.
// Reads go through Peek, so a lookup never protects an entry from eviction.
//
// LocalCache is not safe for concurrent use; CacheService serialises access.
type LocalCache[K comparable, V any] struct {
	Options   *LocalCacheOptions[K]
	Cache     *simplelru.LRU[string, *CacheEntry[K, V]]
	callbacks []func(CacheEvent[K, V])
}

// Options passed to NewLocalCache
//
// Size: Maximum number of entries in the cache. Must be positive
type LocalCacheOptions[K comparable] struct {
	Size     int
	CacheKey CacheKey[K]
}

func (o *LocalCacheOptions[K]) GetSize() int {
	return o.Size
}

func NewLocalCache[K comparable, V any](options *LocalCacheOptions[K]) (*LocalCache[K, V], error) {
	if options.CacheKey == nil {
		panic("CacheKey must be provided")
	}
	lru, err := simplelru.NewLRU[string, *CacheEntry[K, V]](options.Size, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: local cache size %d", ErrInvalidOptions, options.Size)
	}
	return &LocalCache[K, V]{
		Cache:   lru,
		Options: options,
	}, nil
}

func (c *LocalCache[K, V]) Get(key K) (*V, bool) {
	entry, ok := c.Cache.Peek(c.Options.CacheKey.Marshal(key))
	if !ok || entry == nil {
		return nil, false
	}
	return entry.Value, true
}

// Set stores value under key. Replacing an existing key keeps its position
// in the eviction order. It reports whether an older entry was evicted.
func (c *LocalCache[K, V]) Set(key K, value V) bool {
	stringKey := c.Options.CacheKey.Marshal(key)
	if entry, ok := c.Cache.Peek(stringKey); ok {
		entry.Value = &value
		c.emit(CacheEvent[K, V]{Entry: entry, Type: CacheEventSet})
		return false
	}

	evicted := false
	if c.Cache.Len() >= c.Options.Size {
		if _, oldest, ok := c.Cache.RemoveOldest(); ok {
			evicted = true
			c.emit(CacheEvent[K, V]{Entry: oldest, Type: CacheEventEvict})
		}
	}

	entry := &CacheEntry[K, V]{
		Key:   key,
		Value: &value,
	}
	c.Cache.Add(stringKey, entry)
	c.emit(CacheEvent[K, V]{Entry: entry, Type: CacheEventSet})
	return evicted
}

func (c *LocalCache[K, V]) Remove(key K) bool {
	stringKey := c.Options.CacheKey.Marshal(key)
	entry, ok := c.Cache.Peek(stringKey)
	if !ok {
		return false
	}
	c.Cache.Remove(stringKey)
	c.emit(CacheEvent[K, V]{Entry: entry, Type: CacheEventRemove})
	return true
}

// RemoveFunc removes every entry whose key satisfies match and returns the
// number of removed entries.
func (c *LocalCache[K, V]) RemoveFunc(match func(K) bool) int {
	removed := 0
	for _, stringKey := range c.Cache.Keys() {
		entry, ok := c.Cache.Peek(stringKey)
		if !ok || !match(entry.Key) {
			continue
		}
		c.Cache.Remove(stringKey)
		c.emit(CacheEvent[K, V]{Entry: entry, Type: CacheEventRemove})
		removed++
	}
	return removed
}

func (c *LocalCache[K, V]) Contains(key K) bool {
	return c.Cache.Contains(c.Options.CacheKey.Marshal(key))
}

func (c *LocalCache[K, V]) Len() int {
	return c.Cache.Len()
}

// Purge drops every entry and returns how many were held.
func (c *LocalCache[K, V]) Purge() int {
	n := c.Cache.Len()
	c.Cache.Purge()
	if n > 0 {
		c.emit(CacheEvent[K, V]{Type: CacheEventPurge})
	}
	return n
}

// Load returns the entries ordered from oldest to newest.
func (c *LocalCache[K, V]) Load() []CacheEntry[K, V] {
	entries := make([]CacheEntry[K, V], 0, c.Cache.Len())
	for _, stringKey := range c.Cache.Keys() {
		if entry, ok := c.Cache.Peek(stringKey); ok {
			entries = append(entries, *entry)
		}
	}
	return entries
}

func (c *LocalCache[K, V]) AddCallback(callback func(CacheEvent[K, V])) {
	c.callbacks = append(c.callbacks, callback)
}

func (c *LocalCache[K, V]) emit(event CacheEvent[K, V]) {
	for _, callback := range c.callbacks {
		callback(event)
	}
}
