package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLoader reads tenant configurations from a tenants table. The core
// never writes it; provisioning happens out of band.
type PostgresLoader struct {
	pool *pgxpool.Pool
}

func NewPostgresLoader(ctx context.Context, databaseURL string) (*PostgresLoader, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresLoader{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmt := `CREATE TABLE IF NOT EXISTS tenants (
		tenant_id TEXT PRIMARY KEY,
		config JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("init tenants schema: %w", err)
	}
	return nil
}

func (l *PostgresLoader) Load(ctx context.Context, tenantID string) (*Config, error) {
	if tenantID == "" {
		tenantID = DefaultTenantID
	}

	cfg, err := l.read(ctx, tenantID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	if tenantID == DefaultTenantID {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tenantID)
	}

	log.Printf("[TENANT] %s not found, using default", tenantID)
	cfg, err = l.read(ctx, DefaultTenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s (no default either)", ErrNotFound, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("load default tenant: %w", err)
	}
	return cfg, nil
}

func (l *PostgresLoader) read(ctx context.Context, id string) (*Config, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx,
		`SELECT config FROM tenants WHERE tenant_id=$1`, id,
	).Scan(&raw)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse tenant %s: %w", id, err)
	}
	if cfg.TenantID == "" {
		cfg.TenantID = id
	}
	return &cfg, nil
}

func (l *PostgresLoader) List(ctx context.Context) ([]string, error) {
	rows, err := l.pool.Query(ctx, `SELECT tenant_id FROM tenants ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (l *PostgresLoader) Close() error {
	l.pool.Close()
	return nil
}
