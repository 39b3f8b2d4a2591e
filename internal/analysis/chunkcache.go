package analysis

import (
	"sort"
	"sync"
	"time"
)

// Chunk is one (month, depth-bin) unit of occupancy data: an ordered
// timestamp sequence and, per cell, a probability sequence positionally
// aligned with it. Chunks are immutable once fetched.
type Chunk struct {
	Month      string
	Depth      int
	Timestamps []time.Time
	Cells      map[int][]float64
}

// ChunkKey identifies a chunk in the cache.
type ChunkKey struct {
	Month string
	Depth int
}

// ChunkCache holds occupancy chunks for one scenario session as a two-level
// month → depth → chunk structure. Merges are additive and chunk-atomic: a
// present (month, depth) entry is never overwritten or partially updated, so
// merging the same fetch result twice leaves the cache unchanged.
type ChunkCache struct {
	mu     sync.RWMutex
	months map[string]map[int]*Chunk
}

// NewChunkCache returns an empty cache.
func NewChunkCache() *ChunkCache {
	return &ChunkCache{months: make(map[string]map[int]*Chunk)}
}

// Has reports whether the exact (month, depth) entry is held.
func (c *ChunkCache) Has(month string, depth int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byDepth, ok := c.months[month]
	if !ok {
		return false
	}
	_, ok = byDepth[depth]
	return ok
}

// Get returns the chunk for (month, depth) when present.
func (c *ChunkCache) Get(month string, depth int) (*Chunk, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byDepth, ok := c.months[month]
	if !ok {
		return nil, false
	}
	ch, ok := byDepth[depth]
	return ch, ok
}

// Merge inserts fetched chunks additively, skipping nil entries and keys
// already present, and returns how many chunks were newly added.
func (c *ChunkCache) Merge(chunks []*Chunk) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	added := 0
	for _, ch := range chunks {
		if ch == nil {
			continue
		}
		byDepth, ok := c.months[ch.Month]
		if !ok {
			byDepth = make(map[int]*Chunk)
			c.months[ch.Month] = byDepth
		}
		if _, exists := byDepth[ch.Depth]; exists {
			continue
		}
		byDepth[ch.Depth] = ch
		added++
	}
	return added
}

// MissingChunks runs the cross-product membership test: every (month, depth)
// pair from the required sets with no cache entry, in month-major order.
func (c *ChunkCache) MissingChunks(months []string, depths []int) []ChunkKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var missing []ChunkKey
	for _, month := range months {
		byDepth := c.months[month]
		for _, depth := range depths {
			if byDepth != nil {
				if _, ok := byDepth[depth]; ok {
					continue
				}
			}
			missing = append(missing, ChunkKey{Month: month, Depth: depth})
		}
	}
	return missing
}

// Chunks returns every held chunk ordered by (month, depth).
func (c *ChunkCache) Chunks() []*Chunk {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Chunk, 0, len(c.months))
	for _, byDepth := range c.months {
		for _, ch := range byDepth {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].Depth < out[j].Depth
	})
	return out
}

// Len returns the number of held chunks.
func (c *ChunkCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, byDepth := range c.months {
		n += len(byDepth)
	}
	return n
}

// Clear drops every chunk. Called when the scenario changes.
func (c *ChunkCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.months = make(map[string]map[int]*Chunk)
}
