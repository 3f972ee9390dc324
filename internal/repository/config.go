package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/comtower/sms-relay/internal/database"
	"github.com/comtower/sms-relay/internal/model"
)

// ConfigRepository handles runtime key/value settings.
type ConfigRepository interface {
	Get(ctx context.Context, key string) (*model.SystemConfig, error)
	GetAll(ctx context.Context) ([]model.SystemConfig, error)
	Upsert(ctx context.Context, key, value string) error
	Increment(ctx context.Context, q database.DBTX, key string, delta int) error
}

type configRepo struct {
	db *sqlx.DB
}

// NewConfigRepository creates a new system config repository
func NewConfigRepository(db *sqlx.DB) ConfigRepository {
	return &configRepo{db: db}
}

func (r *configRepo) Get(ctx context.Context, key string) (*model.SystemConfig, error) {
	var cfg model.SystemConfig
	err := r.db.GetContext(ctx, &cfg, `
		SELECT * FROM system_configs WHERE config_key = $1
	`, key)
	return HandleNotFound(&cfg, err)
}

func (r *configRepo) GetAll(ctx context.Context) ([]model.SystemConfig, error) {
	var configs []model.SystemConfig
	err := r.db.SelectContext(ctx, &configs, `
		SELECT * FROM system_configs ORDER BY config_key
	`)
	return configs, err
}

func (r *configRepo) Upsert(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_configs (config_key, config_value)
		VALUES ($1, $2)
		ON CONFLICT (config_key) DO UPDATE
		SET config_value = EXCLUDED.config_value, updated_at = NOW()
	`, key, value)
	return err
}

// Increment adds delta to a numeric counter setting. Used for the running
// total of issued links.
func (r *configRepo) Increment(ctx context.Context, q database.DBTX, key string, delta int) error {
	_, err := q.ExecContext(ctx, `
		UPDATE system_configs
		SET config_value = (config_value::bigint + $2)::text, updated_at = NOW()
		WHERE config_key = $1
	`, key, delta)
	return err
}
