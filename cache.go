package cache

import (
	"context"
	"errors"
)

var (
	ErrNilCompute     = errors.New("cache: compute function is nil")
	ErrInvalidOptions = errors.New("cache: invalid options")
	ErrKeyEncoding    = errors.New("cache: failed to encode key input")
	ErrTypeMismatch   = errors.New("cache: cached value has unexpected type")
)

// ComputeFunc produces the value that is memoized on a cache miss.
// Returning an error leaves the cache untouched.
type ComputeFunc func(ctx context.Context) (any, error)

type CacheKey[K comparable] interface {
	Marshal(K) string
	Unmarshal(string) (K, error)
}

type StringCacheKey struct {
}

func (k *StringCacheKey) Marshal(key string) string {
	return key
}

func (k *StringCacheKey) Unmarshal(data string) (string, error) {
	return data, nil
}

type CacheEntry[K comparable, V any] struct {
	Key   K
	Value *V
}

type CacheEventType int

const (
	CacheEventSet CacheEventType = iota
	CacheEventRemove
	CacheEventEvict
	CacheEventPurge
)

func (t CacheEventType) String() string {
	switch t {
	case CacheEventSet:
		return "set"
	case CacheEventRemove:
		return "remove"
	case CacheEventEvict:
		return "evict"
	case CacheEventPurge:
		return "purge"
	default:
		return "unknown"
	}
}

type CacheEvent[K comparable, V any] struct {
	Entry *CacheEntry[K, V]
	Type  CacheEventType
}
