package storage

import (
	"context"
	"fmt"
)

// schemaStatements are applied in order by Migrate. Every statement is
// idempotent so Migrate can run on each start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS model_catalog (
		id                BIGSERIAL PRIMARY KEY,
		model_name        TEXT NOT NULL UNIQUE,
		api_provider      TEXT NOT NULL,
		api_endpoint      TEXT,
		encrypted_api_key TEXT,
		headers           JSONB NOT NULL DEFAULT '{}'::jsonb,
		parameters        JSONB NOT NULL DEFAULT '{}'::jsonb,
		is_active         BOOLEAN NOT NULL DEFAULT TRUE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id                BIGINT PRIMARY KEY,
		username          TEXT,
		first_name        TEXT NOT NULL DEFAULT '',
		is_banned         BOOLEAN NOT NULL DEFAULT FALSE,
		selected_model_id BIGINT REFERENCES model_catalog(id) ON DELETE SET NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS user_credentials (
		id                BIGSERIAL PRIMARY KEY,
		user_id           BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		model_id          BIGINT NOT NULL REFERENCES model_catalog(id) ON DELETE CASCADE,
		encrypted_api_key TEXT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, model_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_custom_models (
		id                BIGSERIAL PRIMARY KEY,
		user_id           BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		custom_name       TEXT NOT NULL,
		model_name        TEXT NOT NULL,
		api_provider      TEXT NOT NULL,
		api_endpoint      TEXT NOT NULL,
		encrypted_api_key TEXT NOT NULL,
		is_active         BOOLEAN NOT NULL DEFAULT TRUE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, custom_name)
	)`,
	`CREATE TABLE IF NOT EXISTS chat_history (
		id         BIGSERIAL PRIMARY KEY,
		session_id UUID NOT NULL,
		user_id    BIGINT NOT NULL,
		group_id   BIGINT,
		role       TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_history_user_created ON chat_history (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_history_session ON chat_history (session_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_custom_models_user_active ON user_custom_models (user_id) WHERE is_active`,
}

// Migrate applies the schema inside a single transaction
func (db *DB) Migrate(ctx context.Context) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}
