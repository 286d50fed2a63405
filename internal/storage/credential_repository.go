package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/anronharry/TG-bot/internal/models"
)

// CredentialRepository handles per-(user, catalog model) key overrides
type CredentialRepository struct {
	db *DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Get returns the stored override for (userID, modelID)
func (r *CredentialRepository) Get(ctx context.Context, userID, modelID int64) (*models.UserCredential, error) {
	var cred models.UserCredential
	query := `
		SELECT id, user_id, model_id, encrypted_api_key, created_at, updated_at
		FROM user_credentials
		WHERE user_id = $1 AND model_id = $2
	`

	err := r.db.conn.GetContext(ctx, &cred, query, userID, modelID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return &cred, nil
}

// Upsert stores or replaces the encrypted key for (userID, modelID)
func (r *CredentialRepository) Upsert(ctx context.Context, userID, modelID int64, encryptedKey string) error {
	query := `
		INSERT INTO user_credentials (user_id, model_id, encrypted_api_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, model_id) DO UPDATE
		SET encrypted_api_key = EXCLUDED.encrypted_api_key,
		    updated_at = NOW()
	`

	if _, err := r.db.conn.ExecContext(ctx, query, userID, modelID, encryptedKey); err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	return nil
}
