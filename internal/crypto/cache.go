package crypto

import "sync"

// ContentKeyCache holds decrypted per-file content keys, keyed by
// fileId. It is written by encrypt and read by decrypt so a file
// opened multiple times in one session does not re-run the KEM
// unwrap path each time. Guarded by a single mutex; critical sections
// are O(1) lookups and inserts.
type ContentKeyCache struct {
	mu   sync.Mutex
	keys map[string][]byte
}

// NewContentKeyCache creates an empty cache.
func NewContentKeyCache() *ContentKeyCache {
	return &ContentKeyCache{keys: make(map[string][]byte)}
}

// Put stores a copy of contentKey for fileId.
func (c *ContentKeyCache) Put(fileID string, contentKey []byte) {
	stored := make([]byte, len(contentKey))
	copy(stored, contentKey)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[fileID] = stored
}

// Get returns a copy of the cached content key for fileId, if present.
func (c *ContentKeyCache) Get(fileID string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.keys[fileID]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(key))
	copy(out, key)
	return out, true
}

// Evict zeroes and removes the cached content key for fileId.
func (c *ContentKeyCache) Evict(fileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key, ok := c.keys[fileID]; ok {
		Zero(key)
		delete(c.keys, fileID)
	}
}

// Clear zeroes and removes every cached content key. Called on service
// shutdown.
func (c *ContentKeyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for fileID, key := range c.keys {
		Zero(key)
		delete(c.keys, fileID)
	}
}

// Len returns the number of cached entries.
func (c *ContentKeyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}
