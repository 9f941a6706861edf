package tenant

import (
	"context"
	"strings"
	"sync"
)

// CachedLoader memoizes Load results. Tenant configs change rarely; a
// duplicate load during a construction race is harmless because both
// goroutines read the same immutable source.
type CachedLoader struct {
	inner Loader

	mu    sync.RWMutex
	cache map[string]*Config
}

func NewCachedLoader(inner Loader) *CachedLoader {
	return &CachedLoader{inner: inner, cache: make(map[string]*Config)}
}

func (l *CachedLoader) Load(ctx context.Context, tenantID string) (*Config, error) {
	key := strings.TrimSpace(tenantID)
	if key == "" {
		key = DefaultTenantID
	}

	l.mu.RLock()
	cfg, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	cfg, err := l.inner.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[key] = cfg
	l.mu.Unlock()
	return cfg, nil
}

func (l *CachedLoader) List(ctx context.Context) ([]string, error) {
	return l.inner.List(ctx)
}

// Invalidate clears the cache, forcing reloads from the source.
func (l *CachedLoader) Invalidate() {
	l.mu.Lock()
	l.cache = make(map[string]*Config)
	l.mu.Unlock()
}

func (l *CachedLoader) Close() error {
	return l.inner.Close()
}

// NewLoader creates a postgres-backed loader when configured, otherwise the
// JSON file loader, both wrapped with memoization.
func NewLoader(ctx context.Context, databaseURL, tenantDir string) (Loader, error) {
	if strings.TrimSpace(databaseURL) != "" {
		pg, err := NewPostgresLoader(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return NewCachedLoader(pg), nil
	}
	return NewCachedLoader(NewFileLoader(tenantDir)), nil
}
