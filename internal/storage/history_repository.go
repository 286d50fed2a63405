package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/anronharry/TG-bot/internal/models"
)

const historyColumns = `id, session_id, user_id, group_id, role, content, created_at`

// HistoryRepository handles the append-only chat history
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new chat history repository
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// AppendExchange writes both rows of an exchange in one transaction
func (r *HistoryRepository) AppendExchange(ctx context.Context, exchange *models.Exchange) error {
	return r.AppendExchanges(ctx, []*models.Exchange{exchange})
}

// AppendExchanges writes several exchanges in one transaction
func (r *HistoryRepository) AppendExchanges(ctx context.Context, exchanges []*models.Exchange) error {
	if len(exchanges) == 0 {
		return nil
	}

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, exchange := range exchanges {
		for _, row := range exchange.Rows() {
			if err := insertHistoryRow(ctx, tx, row); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func insertHistoryRow(ctx context.Context, tx *sqlx.Tx, row *models.ChatHistory) error {
	query := `
		INSERT INTO chat_history (session_id, user_id, group_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := tx.QueryRowxContext(ctx, query,
		row.SessionID, row.UserID, row.GroupID, row.Role, row.Content, row.CreatedAt,
	).Scan(&row.ID)
	if err != nil {
		return fmt.Errorf("failed to insert history row: %w", err)
	}

	return nil
}

// RecentSessionHistory returns every row of the user's most recently active
// sessions, ranked by the newest row in each session, in ascending time.
func (r *HistoryRepository) RecentSessionHistory(ctx context.Context, userID int64, sessions int) ([]*models.ChatHistory, error) {
	if sessions <= 0 {
		return nil, nil
	}

	query := `
		WITH recent AS (
			SELECT session_id
			FROM chat_history
			WHERE user_id = $1
			GROUP BY session_id
			ORDER BY MAX(created_at) DESC
			LIMIT $2
		)
		SELECT ` + historyColumns + `
		FROM chat_history
		WHERE user_id = $1 AND session_id IN (SELECT session_id FROM recent)
		ORDER BY created_at ASC, id ASC
	`

	var rows []*models.ChatHistory
	if err := r.db.conn.SelectContext(ctx, &rows, query, userID, sessions); err != nil {
		return nil, fmt.Errorf("failed to load recent history: %w", err)
	}

	return rows, nil
}

// ListBySession returns one session's rows in ascending time
func (r *HistoryRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.ChatHistory, error) {
	query := `SELECT ` + historyColumns + ` FROM chat_history WHERE session_id = $1 ORDER BY created_at ASC, id ASC`

	var rows []*models.ChatHistory
	if err := r.db.conn.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to list session history: %w", err)
	}

	return rows, nil
}

// CountByUser returns how many history rows a user has
func (r *HistoryRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.db.conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM chat_history WHERE user_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}

// DeleteByUser wipes all history rows of a user
func (r *HistoryRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM chat_history WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete history: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
