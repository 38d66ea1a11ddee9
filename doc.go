// Package cache memoizes form engine computations.
//
// A CacheService holds two independent bounded caches: one for values
// derived per field path (GetValue, keyed by CreateValueKey) and one for
// computations over a whole FormState (GetFormState). Both evict in
// insertion order once MaxCacheSize is reached, count hits and misses, and
// report to OpenTelemetry.
package cache
