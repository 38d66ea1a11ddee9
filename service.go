package cache

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CacheService memoizes derived form values and form-state computations in
// two independent bounded caches. A service is meant to be owned by one form
// engine and passed by pointer to whatever needs it.
//
// The compute function runs outside the service lock. Concurrent misses for
// the same key share a single compute call.
type CacheService struct {
	Options *Options

	logger    *zap.Logger
	telemetry *telemetry
	group     singleflight.Group

	mu        sync.Mutex
	value     *namedCache
	formState *namedCache
}

type namedCache struct {
	name    string
	enabled bool
	local   *LocalCache[string, any]

	hits      uint64
	misses    uint64
	evictions uint64
}

func NewCacheService(options *Options) (*CacheService, error) {
	if options == nil {
		options = &Options{}
	}

	logger := options.GetLogger().Named("formcache")
	if options.MaxCacheSize < 0 {
		logger.Warn("negative max cache size, clamping",
			zap.Int("configured", options.MaxCacheSize),
			zap.Int("effective", options.GetMaxCacheSize()))
	}

	s := &CacheService{
		Options:   options,
		logger:    logger,
		telemetry: newTelemetry(options),
	}

	var err error
	s.value, err = s.newNamedCache(cacheNameValue, options.EnableValueCache)
	if err != nil {
		return nil, err
	}
	s.formState, err = s.newNamedCache(cacheNameFormState, options.EnableFormStateCache)
	if err != nil {
		return nil, err
	}

	s.telemetry.observeSize(func() (int, int) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.value.local.Len(), s.formState.local.Len()
	})

	logger.Debug("cache service created",
		zap.Bool("valueCache", options.EnableValueCache),
		zap.Bool("formStateCache", options.EnableFormStateCache),
		zap.Int("maxCacheSize", options.GetMaxCacheSize()))

	return s, nil
}

func (s *CacheService) newNamedCache(name string, enabled bool) (*namedCache, error) {
	local, err := NewLocalCache[string, any](&LocalCacheOptions[string]{
		Size:     s.Options.GetMaxCacheSize(),
		CacheKey: &StringCacheKey{},
	})
	if err != nil {
		return nil, err
	}

	c := &namedCache{
		name:    name,
		enabled: enabled,
		local:   local,
	}

	// callbacks fire while s.mu is held
	local.AddCallback(func(event CacheEvent[string, any]) {
		if event.Type != CacheEventEvict {
			return
		}
		c.evictions++
		s.telemetry.evict(context.Background(), c.name)
		s.logger.Debug("evicted oldest entry",
			zap.String("cache", c.name),
			zap.String("key", event.Entry.Key))
	})

	return c, nil
}

// CreateValueKey derives the key GetValue expects for value at path.
func (s *CacheService) CreateValueKey(path string, value any) (string, error) {
	return CreateValueKey(path, value)
}

func (s *CacheService) CreateFormStateKey(state FormState) (string, error) {
	return CreateFormStateKey(state)
}

// GetValue returns the value cached under key, running compute on a miss.
// When the value cache is disabled compute runs on every call.
//
// A compute shared by concurrent callers receives a context that keeps the
// values of the first caller's ctx but not its cancellation, so one caller
// giving up does not fail the others.
func (s *CacheService) GetValue(ctx context.Context, key string, compute ComputeFunc) (any, error) {
	return s.lookup(ctx, s.value, key, compute)
}

// GetFormState is GetValue for the form-state cache with the key derived
// from state. A hit returns the exact value stored by the first compute.
func (s *CacheService) GetFormState(ctx context.Context, state FormState, compute ComputeFunc) (any, error) {
	if compute == nil {
		return nil, ErrNilCompute
	}
	if !s.formState.enabled {
		return s.lookup(ctx, s.formState, "", compute)
	}
	key, err := CreateFormStateKey(state)
	if err != nil {
		return nil, err
	}
	return s.lookup(ctx, s.formState, key, compute)
}

func (s *CacheService) lookup(ctx context.Context, c *namedCache, key string, compute ComputeFunc) (any, error) {
	if compute == nil {
		return nil, ErrNilCompute
	}

	if !c.enabled {
		s.mu.Lock()
		c.misses++
		s.mu.Unlock()
		s.telemetry.miss(ctx, c.name)
		return s.telemetry.compute(ctx, c.name, key, compute)
	}

	s.mu.Lock()
	if value, ok := c.local.Get(key); ok {
		c.hits++
		s.mu.Unlock()
		s.telemetry.hit(ctx, c.name)
		return *value, nil
	}
	c.misses++
	s.mu.Unlock()
	s.telemetry.miss(ctx, c.name)

	value, err, _ := s.group.Do(c.name+"\x00"+key, func() (any, error) {
		// an earlier call may have stored the value after our miss
		s.mu.Lock()
		existing, ok := c.local.Get(key)
		s.mu.Unlock()
		if ok {
			return *existing, nil
		}

		result, err := s.telemetry.compute(context.WithoutCancel(ctx), c.name, key, compute)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := c.local.Get(key); ok {
			return *existing, nil
		}
		c.local.Set(key, result)
		return result, nil
	})
	return value, err
}

// ClearForPath drops every value entry whose key was created for path or a
// path nested below it ("items" also clears "items.0" and "items[1]").
// Keys that were not built by CreateValueKey are only removed on an exact
// match. A raw key shaped like a value key ("name|0123456789abcdef") is
// treated as one and cleared together with path "name".
func (s *CacheService) ClearForPath(path string) int {
	s.mu.Lock()
	removed := s.value.local.RemoveFunc(func(key string) bool {
		keyPath, ok := PathOfKey(key)
		if !ok {
			return key == path
		}
		return pathCovers(path, keyPath)
	})
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Debug("cleared value cache path",
			zap.String("path", path),
			zap.Int("removed", removed))
	}
	return removed
}

func (s *CacheService) ClearFormStateCache() int {
	s.mu.Lock()
	removed := s.formState.local.Purge()
	s.mu.Unlock()

	s.logger.Debug("cleared form state cache", zap.Int("removed", removed))
	return removed
}

// Close unregisters the size gauge callback. Entries stay usable.
func (s *CacheService) Close() error {
	return s.telemetry.unregister()
}

// GetValueAs is GetValue with a typed compute function. A cached value of a
// different type is reported as ErrTypeMismatch.
func GetValueAs[T any](ctx context.Context, s *CacheService, key string, compute func(context.Context) (T, error)) (T, error) {
	value, err := s.GetValue(ctx, key, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	return assertType[T](value, err)
}

func GetFormStateAs[T any](ctx context.Context, s *CacheService, state FormState, compute func(context.Context) (T, error)) (T, error) {
	value, err := s.GetFormState(ctx, state, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	return assertType[T](value, err)
}

func assertType[T any](value any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if value == nil {
		return zero, nil
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: have %T, want %T", ErrTypeMismatch, value, zero)
	}
	return typed, nil
}
