package cache

type CacheStats struct {
	Enabled   bool
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
	MaxSize   int
}

// HitRate is Hits/(Hits+Misses), 0 before the first lookup.
func (s CacheStats) HitRate() float64 {
	return hitRate(s.Hits, s.Misses)
}

// Stats aggregates both caches. Size is the sum of both caches; each one is
// bounded by MaxCacheSize on its own.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64
	Size      int

	Value     CacheStats
	FormState CacheStats
}

func (s *CacheService) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := s.value.stats()
	formState := s.formState.stats()

	hits := value.Hits + formState.Hits
	misses := value.Misses + formState.Misses
	return Stats{
		Hits:      hits,
		Misses:    misses,
		Evictions: value.Evictions + formState.Evictions,
		HitRate:   hitRate(hits, misses),
		Size:      value.Size + formState.Size,
		Value:     value,
		FormState: formState,
	}
}

// ResetStats zeroes the counters. Cached entries are kept.
func (s *CacheService) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range []*namedCache{s.value, s.formState} {
		c.hits, c.misses, c.evictions = 0, 0, 0
	}
}

func (c *namedCache) stats() CacheStats {
	return CacheStats{
		Enabled:   c.enabled,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.local.Len(),
		MaxSize:   c.local.Options.GetSize(),
	}
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
