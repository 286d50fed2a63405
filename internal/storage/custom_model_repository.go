package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/anronharry/TG-bot/internal/models"
)

const customModelColumns = `id, user_id, custom_name, model_name, api_provider, api_endpoint,
		       encrypted_api_key, is_active, created_at`

// CustomModelRepository handles personal model registrations
type CustomModelRepository struct {
	db *DB
}

// NewCustomModelRepository creates a new personal model repository
func NewCustomModelRepository(db *DB) *CustomModelRepository {
	return &CustomModelRepository{db: db}
}

// ListActiveByUser returns a user's active personal models, newest first
func (r *CustomModelRepository) ListActiveByUser(ctx context.Context, userID int64) ([]*models.UserCustomModel, error) {
	query := `SELECT ` + customModelColumns + `
		FROM user_custom_models
		WHERE user_id = $1 AND is_active
		ORDER BY created_at DESC, id DESC`

	var list []*models.UserCustomModel
	if err := r.db.conn.SelectContext(ctx, &list, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list custom models: %w", err)
	}

	return list, nil
}

// ListByUser returns all of a user's personal models including inactive ones
func (r *CustomModelRepository) ListByUser(ctx context.Context, userID int64) ([]*models.UserCustomModel, error) {
	query := `SELECT ` + customModelColumns + `
		FROM user_custom_models
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	var list []*models.UserCustomModel
	if err := r.db.conn.SelectContext(ctx, &list, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list custom models: %w", err)
	}

	return list, nil
}

// GetByID retrieves a personal model regardless of owner or state
func (r *CustomModelRepository) GetByID(ctx context.Context, id int64) (*models.UserCustomModel, error) {
	var m models.UserCustomModel
	query := `SELECT ` + customModelColumns + ` FROM user_custom_models WHERE id = $1`

	err := r.db.conn.GetContext(ctx, &m, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCustomModelNotFound
		}
		return nil, fmt.Errorf("failed to get custom model: %w", err)
	}

	return &m, nil
}

// Upsert registers a personal model keyed by (user, custom name).
// Re-registering a name replaces its target and reactivates it.
func (r *CustomModelRepository) Upsert(ctx context.Context, m *models.UserCustomModel) error {
	query := `
		INSERT INTO user_custom_models (user_id, custom_name, model_name, api_provider, api_endpoint, encrypted_api_key, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (user_id, custom_name) DO UPDATE
		SET model_name = EXCLUDED.model_name,
		    api_provider = EXCLUDED.api_provider,
		    api_endpoint = EXCLUDED.api_endpoint,
		    encrypted_api_key = EXCLUDED.encrypted_api_key,
		    is_active = TRUE
		RETURNING id, created_at
	`

	err := r.db.conn.QueryRowxContext(ctx, query,
		m.UserID, m.CustomName, m.ModelName, m.Provider, m.Endpoint, m.EncryptedAPIKey,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert custom model: %w", err)
	}

	m.IsActive = true
	return nil
}

// SetActive toggles a personal model owned by userID
func (r *CustomModelRepository) SetActive(ctx context.Context, userID, id int64, active bool) error {
	result, err := r.db.conn.ExecContext(ctx,
		`UPDATE user_custom_models SET is_active = $3 WHERE id = $1 AND user_id = $2`, id, userID, active)
	if err != nil {
		return fmt.Errorf("failed to update custom model: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrCustomModelNotFound
	}

	return nil
}
