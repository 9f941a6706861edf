package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileLoader reads tenant configurations from <dir>/<tenant_id>.json.
type FileLoader struct {
	dir string
}

func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{dir: dir}
}

func (l *FileLoader) Load(_ context.Context, tenantID string) (*Config, error) {
	id := sanitizeID(tenantID)
	if id == "" {
		id = DefaultTenantID
	}

	cfg, err := l.read(id)
	if err == nil {
		return cfg, nil
	}
	if id == DefaultTenantID {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tenantID)
	}

	log.Printf("[TENANT] %s not found, using default", tenantID)
	cfg, err = l.read(DefaultTenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (no default either)", ErrNotFound, tenantID)
	}
	return cfg, nil
}

func (l *FileLoader) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *FileLoader) Close() error { return nil }

func (l *FileLoader) read(id string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, id+".json"))
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse tenant %s: %w", id, err)
	}
	if cfg.TenantID == "" {
		cfg.TenantID = id
	}
	return &cfg, nil
}

// sanitizeID strips path separators so ids cannot escape the tenant dir.
func sanitizeID(id string) string {
	id = strings.TrimSpace(id)
	if strings.ContainsAny(id, "/\\.") {
		return ""
	}
	return id
}
