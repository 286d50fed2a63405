package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/anronharry/TG-bot/internal/models"
)

// UserRepository handles user database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by chat identity
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, username, first_name, is_banned, selected_model_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	err := r.db.conn.GetContext(ctx, &user, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// Upsert creates the user on first contact or refreshes its handle and
// display name. Moderation flags and the model selection are left alone;
// the stored values are read back into user.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, first_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    updated_at = NOW()
		RETURNING is_banned, selected_model_id, created_at, updated_at
	`

	err := r.db.conn.QueryRowxContext(ctx, query, user.ID, user.Username, user.FirstName).
		Scan(&user.IsBanned, &user.SelectedModelID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// SetBanned updates the banned flag and reports whether the user exists
func (r *UserRepository) SetBanned(ctx context.Context, id int64, banned bool) (bool, error) {
	query := `UPDATE users SET is_banned = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.conn.ExecContext(ctx, query, id, banned)
	if err != nil {
		return false, fmt.Errorf("failed to update ban flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// SetSelectedModel writes the catalog selection column; nil clears it
func (r *UserRepository) SetSelectedModel(ctx context.Context, id int64, catalogID *int64) error {
	query := `UPDATE users SET selected_model_id = $2, updated_at = NOW() WHERE id = $1`

	var value sql.NullInt64
	if catalogID != nil {
		value = sql.NullInt64{Int64: *catalogID, Valid: true}
	}

	result, err := r.db.conn.ExecContext(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("failed to update selected model: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}
