package willow

import (
	"sync"

	"github.com/ValentinKolb/mKV/lib/db/util"
)

// --------------------------------------------------------------------------
// Value Cache
// --------------------------------------------------------------------------

// cacheEntry stores a cached value together with its full key. The cache is
// addressed by hashed keys, the stored key guards against hash collisions.
type cacheEntry struct {
	key   string
	value []byte
}

// valueCache is a bounded in-memory cache for decoded record values.
// Reads hitting the cache skip the disk read and the AEAD open. Eviction is
// least-recently-used, implemented with a util.MapHeap keyed by access tick.
//
// Thread-safety: all methods are safe for concurrent use.
type valueCache struct {
	mu       sync.Mutex
	entries  map[uint64]cacheEntry
	lru      *util.MapHeap
	seed     uint64
	capBytes int
	size     int
	tick     uint64
}

func newValueCache(capBytes int) *valueCache {
	return &valueCache{
		entries:  make(map[uint64]cacheEntry),
		lru:      util.NewMapHeap(),
		seed:     util.GenerateSeed(),
		capBytes: capBytes,
	}
}

// get returns a copy of the cached value for key, if present.
func (c *valueCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := uint64(util.HashString(key, c.seed))
	entry, ok := c.entries[h]
	if !ok || entry.key != key {
		return nil, false
	}

	// refresh LRU position
	c.tick++
	c.lru.AddItem(h, c.tick)

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true
}

// put stores a copy of value under key and evicts the least recently used
// entries until the cache fits its capacity again.
func (c *valueCache) put(key string, value []byte) {
	if c.capBytes <= 0 || len(value) > c.capBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	h := uint64(util.HashString(key, c.seed))

	// replacing an entry frees its old size first
	if old, ok := c.entries[h]; ok {
		c.size -= len(old.value)
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.entries[h] = cacheEntry{key: key, value: valueCopy}
	c.size += len(valueCopy)
	c.tick++
	c.lru.AddItem(h, c.tick)

	for c.size > c.capBytes {
		item, ok := c.lru.PopItem()
		if !ok {
			break
		}
		if entry, exists := c.entries[item.Key]; exists {
			c.size -= len(entry.value)
			delete(c.entries, item.Key)
		}
	}
}

// drop removes a single key from the cache.
func (c *valueCache) drop(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := uint64(util.HashString(key, c.seed))
	if entry, ok := c.entries[h]; ok && entry.key == key {
		c.size -= len(entry.value)
		delete(c.entries, h)
		c.lru.RemoveByKey(h)
	}
}

// clear drops all cached values.
func (c *valueCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[uint64]cacheEntry)
	c.lru = util.NewMapHeap()
	c.size = 0
}

// stats returns the current entry count and byte size.
func (c *valueCache) stats() (entries int, bytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), c.size
}
