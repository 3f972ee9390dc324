package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS system_configs (
		id BIGSERIAL PRIMARY KEY,
		config_key TEXT NOT NULL UNIQUE,
		config_value TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS com_phone_mappings (
		id BIGSERIAL PRIMARY KEY,
		com_port TEXT NOT NULL UNIQUE,
		phone_number TEXT NOT NULL UNIQUE,
		last_linked_at TIMESTAMPTZ NULL,
		cooldown_until TIMESTAMPTZ NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS access_links (
		id BIGSERIAL PRIMARY KEY,
		token TEXT NOT NULL UNIQUE,
		mapping_id BIGINT NOT NULL REFERENCES com_phone_mappings(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'active',
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sms_messages (
		id BIGSERIAL PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		com_port TEXT NOT NULL,
		sender_number TEXT NULL,
		receiver_number TEXT NULL,
		content TEXT NOT NULL,
		original_timestamp TIMESTAMPTZ NOT NULL,
		is_consumed BOOLEAN NOT NULL DEFAULT FALSE,
		consumed_by_link_id BIGINT NULL REFERENCES access_links(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sms_messages_port_unconsumed
		ON sms_messages (com_port, original_timestamp DESC) WHERE is_consumed = FALSE`,
	`CREATE INDEX IF NOT EXISTS idx_access_links_mapping_id ON access_links (mapping_id)`,
}

// Seeded defaults, inserted only when the key does not exist yet so that
// admin edits survive restarts.
var defaultConfigs = map[string]string{
	"cooldownPeriod":  "24",
	"validityPeriod":  "10",
	"shortLinkExpiry": "2",
	"announcement":    "Welcome to the SMS verification relay.",
	"targetUrl":       "",
	"linkCount":       "0",
}

// Migrate creates the schema and seeds default runtime configs.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	for key, value := range defaultConfigs {
		_, err := db.ExecContext(ctx, `
			INSERT INTO system_configs (config_key, config_value)
			VALUES ($1, $2)
			ON CONFLICT (config_key) DO NOTHING
		`, key, value)
		if err != nil {
			return fmt.Errorf("seed config %s: %w", key, err)
		}
	}

	log.Info().Msg("database schema checked, defaults seeded")
	return nil
}
