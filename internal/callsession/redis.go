package callsession

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists call sessions in Redis with a fixed retention TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Store(ctx context.Context, sess *CallSession) error {
	data, err := sess.Marshal()
	if err != nil {
		return fmt.Errorf("store session %s: %w", sess.SessionID, err)
	}
	if err := s.client.Set(ctx, storeKey(sess.CarrierCallID), data, s.ttl).Err(); err != nil {
		log.Printf("[STORE] failed to store session %s: %v", sess.SessionID, err)
		return fmt.Errorf("store session %s: %w", sess.SessionID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, carrierCallID string) (*CallSession, error) {
	data, err := s.client.Get(ctx, storeKey(carrierCallID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		log.Printf("[STORE] failed to get session for %s: %v", carrierCallID, err)
		return nil, fmt.Errorf("get session for %s: %w", carrierCallID, err)
	}
	return Unmarshal(data)
}

func (s *RedisStore) Delete(ctx context.Context, carrierCallID string) error {
	if err := s.client.Del(ctx, storeKey(carrierCallID)).Err(); err != nil {
		return fmt.Errorf("delete session for %s: %w", carrierCallID, err)
	}
	return nil
}

func (s *RedisStore) AppendTranscript(ctx context.Context, carrierCallID, speaker, text string) error {
	return appendTranscript(ctx, s, carrierCallID, speaker, text)
}

func (s *RedisStore) AppendEvent(ctx context.Context, carrierCallID, eventType string, data map[string]any) error {
	return appendEvent(ctx, s, carrierCallID, eventType, data)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// appendTranscript is the shared read-modify-write helper. The store has no
// CAS, so a concurrent write between Get and Store wins or loses whole.
func appendTranscript(ctx context.Context, s Store, carrierCallID, speaker, text string) error {
	sess, err := s.Get(ctx, carrierCallID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("append transcript: no session for %s", carrierCallID)
	}
	sess.AddTranscriptEntry(speaker, text)
	return s.Store(ctx, sess)
}

func appendEvent(ctx context.Context, s Store, carrierCallID, eventType string, data map[string]any) error {
	sess, err := s.Get(ctx, carrierCallID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("append event: no session for %s", carrierCallID)
	}
	sess.AddEvent(eventType, data)
	return s.Store(ctx, sess)
}
