package engine

import (
	"sync"
	"time"
)

// AudioCache holds the most recent synthesized audio per session so the
// stream endpoint can serve it back to the carrier. Entries are small
// (one utterance) and expire with the call.
type AudioCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]audioEntry
}

type audioEntry struct {
	data        []byte
	contentType string
	expiresAt   time.Time
}

func NewAudioCache(ttl time.Duration) *AudioCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AudioCache{
		ttl:     ttl,
		entries: make(map[string]audioEntry),
	}
}

func (c *AudioCache) Put(sessionID string, data []byte, contentType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = audioEntry{
		data:        data,
		contentType: contentType,
		expiresAt:   time.Now().Add(c.ttl),
	}
}

func (c *AudioCache) Get(sessionID string) ([]byte, string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[sessionID]
	c.mu.RUnlock()
	if !ok {
		return nil, "", false
	}
	if time.Now().After(entry.expiresAt) {
		c.Delete(sessionID)
		return nil, "", false
	}
	return entry.data, entry.contentType, true
}

func (c *AudioCache) Delete(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}
