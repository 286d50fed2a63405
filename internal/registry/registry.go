// Package registry lists the models a user can pick, matches the rendered
// keyboard text back to a model and stores the user's selection.
//
// Global selections live in the users.selected_model_id column. Personal
// selections cannot reference the catalog foreign key, so they are kept
// in the fast cache under user_custom_model:<user> and take precedence
// over the column.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anronharry/TG-bot/internal/models"
	"github.com/anronharry/TG-bot/internal/storage"
	"github.com/anronharry/TG-bot/internal/utils"
)

// CatalogStore reads global models
type CatalogStore interface {
	ListActive(ctx context.Context) ([]*models.CatalogModel, error)
	GetByID(ctx context.Context, id int64) (*models.CatalogModel, error)
}

// CustomModelStore reads personal models
type CustomModelStore interface {
	ListActiveByUser(ctx context.Context, userID int64) ([]*models.UserCustomModel, error)
	GetByID(ctx context.Context, id int64) (*models.UserCustomModel, error)
}

// UserStore reads and updates the durable selection
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	SetSelectedModel(ctx context.Context, id int64, catalogID *int64) error
}

// Cache is the subset of the fast cache used for personal selections
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) bool
	Delete(ctx context.Context, keys ...string) bool
	Available() bool
}

// ErrSelectionNotStored is returned when a personal selection could not be
// written to the cache.
var ErrSelectionNotStored = errors.New("personal model selection could not be stored")

// ErrOverrideNotCleared is returned when a catalog selection was stored but
// the cached personal override could not be removed. The override would
// otherwise keep shadowing the new selection.
var ErrOverrideNotCleared = errors.New("cached personal selection could not be cleared")

// Option is one selectable model with its rendered label
type Option struct {
	Ref      models.ModelRef
	Display  string
	Catalog  *models.CatalogModel
	Personal *models.UserCustomModel
}

// Registry resolves and stores model selections
type Registry struct {
	catalog  CatalogStore
	personal CustomModelStore
	users    UserStore
	cache    Cache
	logger   *utils.Logger
}

// New creates a registry
func New(catalog CatalogStore, personal CustomModelStore, users UserStore, cache Cache) *Registry {
	return &Registry{
		catalog:  catalog,
		personal: personal,
		users:    users,
		cache:    cache,
		logger:   utils.NewLogger("registry"),
	}
}

func selectionKey(userID int64) string {
	return fmt.Sprintf("user_custom_model:%d", userID)
}

// List returns active catalog entries followed by the user's active
// personal models, each with the label shown on the keyboard.
func (r *Registry) List(ctx context.Context, userID int64) ([]Option, error) {
	catalog, err := r.catalog.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog models: %w", err)
	}

	personal, err := r.personal.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list personal models: %w", err)
	}

	options := make([]Option, 0, len(catalog)+len(personal))
	for _, m := range catalog {
		options = append(options, Option{Ref: m.Ref(), Display: m.DisplayName(), Catalog: m})
	}
	for _, m := range personal {
		options = append(options, Option{Ref: m.Ref(), Display: m.DisplayName(), Personal: m})
	}
	return options, nil
}

// ResolveByDisplayText matches text exactly against the rendered labels,
// catalog first. A nil option with a nil error means text is not a
// selection.
func (r *Registry) ResolveByDisplayText(ctx context.Context, userID int64, text string) (*Option, error) {
	options, err := r.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range options {
		if options[i].Display == text {
			return &options[i], nil
		}
	}
	return nil, nil
}

// SelectedModel returns the user's current selection. The cached personal
// override wins over the durable column.
func (r *Registry) SelectedModel(ctx context.Context, userID int64) (models.ModelRef, bool, error) {
	if raw, ok := r.cache.Get(ctx, selectionKey(userID)); ok {
		ref, err := models.ParseModelRef(raw)
		if err == nil && ref.IsPersonal() {
			return ref, true, nil
		}
		r.logger.Warn("Ignoring malformed cached selection", "user_id", userID, "value", raw)
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.ModelRef{}, false, nil
		}
		return models.ModelRef{}, false, err
	}

	ref, ok := user.SelectedGlobal()
	return ref, ok, nil
}

// SetSelectedModel stores ref as the user's selection
func (r *Registry) SetSelectedModel(ctx context.Context, userID int64, ref models.ModelRef) error {
	switch ref.Kind {
	case models.RefPersonal:
		if !r.cache.Set(ctx, selectionKey(userID), ref.String(), 0) {
			return ErrSelectionNotStored
		}
		if err := r.users.SetSelectedModel(ctx, userID, nil); err != nil {
			return fmt.Errorf("failed to clear catalog selection: %w", err)
		}
	case models.RefGlobal:
		id := ref.ID
		if err := r.users.SetSelectedModel(ctx, userID, &id); err != nil {
			return fmt.Errorf("failed to store catalog selection: %w", err)
		}
		// an unconfigured cache cannot hold an override
		if r.cache.Available() && !r.cache.Delete(ctx, selectionKey(userID)) {
			r.logger.Warn("Cached personal selection not cleared", "user_id", userID, "model", ref.String())
			return ErrOverrideNotCleared
		}
	default:
		return fmt.Errorf("invalid model reference %q", ref.String())
	}

	r.logger.Info("Model selected", "user_id", userID, "model", ref.String())
	return nil
}

// CurrentModelName renders the user's current selection, or "" when
// nothing usable is selected.
func (r *Registry) CurrentModelName(ctx context.Context, userID int64) (string, error) {
	ref, ok, err := r.SelectedModel(ctx, userID)
	if err != nil || !ok {
		return "", err
	}

	if ref.IsPersonal() {
		m, err := r.personal.GetByID(ctx, ref.ID)
		if err != nil {
			if errors.Is(err, storage.ErrCustomModelNotFound) {
				return "", nil
			}
			return "", err
		}
		if m.UserID != userID || !m.IsActive {
			return "", nil
		}
		return m.DisplayName(), nil
	}

	m, err := r.catalog.GetByID(ctx, ref.ID)
	if err != nil {
		if errors.Is(err, storage.ErrCatalogModelNotFound) {
			return "", nil
		}
		return "", err
	}
	if !m.IsActive {
		return "", nil
	}
	return m.DisplayName(), nil
}
