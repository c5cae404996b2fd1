package endgame

import (
	"sync"

	"github.com/hailam/shogiplay/internal/board"
)

// CachedRecognizer wraps another recognizer with a cache keyed by position
// hash.
type CachedRecognizer struct {
	inner   Recognizer
	cache   map[uint64]ProbeResult
	mu      sync.RWMutex
	maxSize int
	hits    uint64
	misses  uint64
}

// NewCachedRecognizer creates a cached recognizer wrapping inner.
func NewCachedRecognizer(inner Recognizer, cacheSize int) *CachedRecognizer {
	if cacheSize < 2 {
		cacheSize = 2
	}
	return &CachedRecognizer{
		inner:   inner,
		cache:   make(map[uint64]ProbeResult, cacheSize),
		maxSize: cacheSize,
	}
}

func (cr *CachedRecognizer) Name() string { return "cached-" + cr.inner.Name() }

func (cr *CachedRecognizer) Probe(pos *board.Position) ProbeResult {
	cr.mu.RLock()
	if result, ok := cr.cache[pos.Hash]; ok {
		cr.mu.RUnlock()
		cr.mu.Lock()
		cr.hits++
		cr.mu.Unlock()
		return result
	}
	cr.mu.RUnlock()

	result := cr.inner.Probe(pos)

	cr.mu.Lock()
	cr.misses++
	if len(cr.cache) >= cr.maxSize {
		// Simple eviction: clear half the cache
		i := 0
		for k := range cr.cache {
			if i >= cr.maxSize/2 {
				break
			}
			delete(cr.cache, k)
			i++
		}
	}
	cr.cache[pos.Hash] = result
	cr.mu.Unlock()

	return result
}

// HitRate returns the cache hit rate as a percentage.
func (cr *CachedRecognizer) HitRate() float64 {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	total := cr.hits + cr.misses
	if total == 0 {
		return 0
	}
	return float64(cr.hits) / float64(total) * 100
}

// CacheSize returns the current number of cached entries.
func (cr *CachedRecognizer) CacheSize() int {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return len(cr.cache)
}

// Clear clears the cache.
func (cr *CachedRecognizer) Clear() {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.cache = make(map[uint64]ProbeResult, cr.maxSize)
	cr.hits = 0
	cr.misses = 0
}
