package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/anronharry/TG-bot/internal/models"
)

const catalogColumns = `id, model_name, api_provider, api_endpoint, encrypted_api_key,
		       headers, parameters, is_active, created_at`

// CatalogRepository handles catalog ("global model") operations with caching
type CatalogRepository struct {
	db    *DB
	cache *LRUCache[int64, *models.CatalogModel]
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{
		db:    db,
		cache: db.catalogCache,
	}
}

// ListActive returns active catalog entries in id order
func (r *CatalogRepository) ListActive(ctx context.Context) ([]*models.CatalogModel, error) {
	query := `SELECT ` + catalogColumns + ` FROM model_catalog WHERE is_active ORDER BY id`

	var entries []*models.CatalogModel
	if err := r.db.conn.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}

	return entries, nil
}

// GetByID retrieves a catalog entry by id (with caching). Inactive entries
// are returned too; callers decide what inactive means.
func (r *CatalogRepository) GetByID(ctx context.Context, id int64) (*models.CatalogModel, error) {
	if cached, found := r.cache.Get(id); found {
		return cached, nil
	}

	var entry models.CatalogModel
	query := `SELECT ` + catalogColumns + ` FROM model_catalog WHERE id = $1`

	err := r.db.conn.GetContext(ctx, &entry, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCatalogModelNotFound
		}
		return nil, fmt.Errorf("failed to get catalog model: %w", err)
	}

	r.cache.Set(id, &entry)
	return &entry, nil
}

// GetByName retrieves a catalog entry by its unique name
func (r *CatalogRepository) GetByName(ctx context.Context, name string) (*models.CatalogModel, error) {
	var entry models.CatalogModel
	query := `SELECT ` + catalogColumns + ` FROM model_catalog WHERE model_name = $1`

	err := r.db.conn.GetContext(ctx, &entry, query, name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCatalogModelNotFound
		}
		return nil, fmt.Errorf("failed to get catalog model: %w", err)
	}

	return &entry, nil
}

// Seed inserts entry unless one with the same name exists. It reports
// whether a row was written and fills entry.ID on insert.
func (r *CatalogRepository) Seed(ctx context.Context, entry *models.CatalogModel) (bool, error) {
	headers := entry.Headers
	if headers == nil {
		headers = models.JSONB{}
	}
	params := entry.Parameters
	if params == nil {
		params = models.JSONB{}
	}

	query := `
		INSERT INTO model_catalog (model_name, api_provider, api_endpoint, encrypted_api_key, headers, parameters, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (model_name) DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.conn.QueryRowxContext(ctx, query,
		entry.ModelName, entry.Provider, entry.Endpoint, entry.EncryptedAPIKey,
		headers, params, entry.IsActive,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to seed catalog model %q: %w", entry.ModelName, err)
	}

	return true, nil
}

// SetActive soft-enables or disables an entry
func (r *CatalogRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.conn.ExecContext(ctx, `UPDATE model_catalog SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update catalog model: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrCatalogModelNotFound
	}

	r.cache.Delete(id)
	return nil
}

// SeedDescriptors inserts every descriptor missing from the catalog and
// returns how many rows were added. Keys of descriptors with an endpoint
// are encrypted onto the row; a nil enc seeds rows without keys.
func (r *CatalogRepository) SeedDescriptors(ctx context.Context, descriptors []models.APIDescriptor, enc *Encryption) (int, error) {
	added := 0
	for i := range descriptors {
		d := &descriptors[i]

		encrypted := ""
		if d.APIKey != "" && d.Endpoint != "" && enc != nil {
			var err error
			encrypted, err = enc.EncryptString(d.APIKey)
			if err != nil {
				return added, fmt.Errorf("failed to encrypt key for %q: %w", d.CatalogName(), err)
			}
		}

		inserted, err := r.Seed(ctx, d.CatalogEntry(encrypted))
		if err != nil {
			return added, err
		}
		if inserted {
			added++
		}
	}
	return added, nil
}
