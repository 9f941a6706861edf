package callsession

import (
	"context"
	"strings"
	"time"
)

// Store maps carrier call id -> serialized CallSession. Every write is a
// full-record upsert that refreshes the TTL; there is no compare-and-swap,
// so concurrent read-modify-write sequences against the same call id are
// last-write-wins. Get returns (nil, nil) for absent or expired keys.
type Store interface {
	Store(ctx context.Context, s *CallSession) error
	Get(ctx context.Context, carrierCallID string) (*CallSession, error)
	Delete(ctx context.Context, carrierCallID string) error
	AppendTranscript(ctx context.Context, carrierCallID, speaker, text string) error
	AppendEvent(ctx context.Context, carrierCallID, eventType string, data map[string]any) error
	Close() error
}

const keyPrefix = "call_session:"

func storeKey(carrierCallID string) string {
	return keyPrefix + carrierCallID
}

// NewStore creates a redis-backed store when configured, otherwise in-memory.
func NewStore(ctx context.Context, redisURL string, ttl time.Duration) (Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return NewInMemoryStore(ttl), nil
	}
	return NewRedisStore(ctx, redisURL, ttl)
}
