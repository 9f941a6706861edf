package tenant

import (
	"context"
	"errors"
)

// ErrNotFound reports a tenant id with no configuration and no default.
var ErrNotFound = errors.New("tenant not found")

// DefaultTenantID is used when a request carries no tenant or an unknown one.
const DefaultTenantID = "default"

// Config is a tenant's white-label configuration. The core only reads it.
type Config struct {
	TenantID  string            `json:"tenant_id"`
	Name      string            `json:"name"`
	Branding  map[string]any    `json:"branding"`
	Providers map[string]string `json:"providers"`
	Features  map[string]bool   `json:"features"`
	Quotas    map[string]int    `json:"quotas"`
	Settings  map[string]any    `json:"config"`
}

// Provider returns the configured provider name for a capability type
// ("llm", "stt", "tts", "telephony"), or "" when unset.
func (c *Config) Provider(capability string) string {
	return c.Providers[capability]
}

// FeatureEnabled reports whether a feature flag is on.
func (c *Config) FeatureEnabled(feature string) bool {
	return c.Features[feature]
}

// Quota returns a quota value and whether it is configured.
func (c *Config) Quota(name string) (int, bool) {
	v, ok := c.Quotas[name]
	return v, ok
}

// Setting returns a free-form config value with a default.
func (c *Config) Setting(key string, fallback any) any {
	if v, ok := c.Settings[key]; ok {
		return v
	}
	return fallback
}

// Loader resolves tenant configurations. Unknown ids fall back to the
// default tenant; ErrNotFound means even the default is missing.
type Loader interface {
	Load(ctx context.Context, tenantID string) (*Config, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}
