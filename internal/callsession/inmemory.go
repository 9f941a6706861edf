package callsession

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps serialized sessions in a map with per-key expiry.
// Used for development and tests; sessions round-trip through the same
// JSON representation as the redis store.
type InMemoryStore struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]memoryEntry
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &InMemoryStore{ttl: ttl, m: make(map[string]memoryEntry)}
}

func (s *InMemoryStore) Store(_ context.Context, sess *CallSession) error {
	data, err := sess.Marshal()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[storeKey(sess.CarrierCallID)] = memoryEntry{
		data:      data,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, carrierCallID string) (*CallSession, error) {
	key := storeKey(carrierCallID)
	s.mu.RLock()
	entry, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.m, key)
		s.mu.Unlock()
		return nil, nil
	}
	return Unmarshal(entry.data)
}

func (s *InMemoryStore) Delete(_ context.Context, carrierCallID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, storeKey(carrierCallID))
	return nil
}

func (s *InMemoryStore) AppendTranscript(ctx context.Context, carrierCallID, speaker, text string) error {
	return appendTranscript(ctx, s, carrierCallID, speaker, text)
}

func (s *InMemoryStore) AppendEvent(ctx context.Context, carrierCallID, eventType string, data map[string]any) error {
	return appendEvent(ctx, s, carrierCallID, eventType, data)
}

func (s *InMemoryStore) Close() error {
	return nil
}
