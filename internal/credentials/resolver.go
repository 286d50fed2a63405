// Package credentials turns a user's model reference into the endpoint, key
// and call parameters for one provider call.
//
// Precedence, highest first:
//
//  1. personal model owned by the user (always the generic adapter)
//  2. catalog entry must exist and be active
//  3. endpoint and encrypted key stored on the catalog entry
//  4. static descriptor whose name matches the entry
//  5. per-user key override, then the process-wide key of a native provider
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anronharry/TG-bot/internal/models"
	"github.com/anronharry/TG-bot/internal/providers"
	"github.com/anronharry/TG-bot/internal/storage"
	"github.com/anronharry/TG-bot/internal/utils"
)

// CatalogStore reads global models
type CatalogStore interface {
	GetByID(ctx context.Context, id int64) (*models.CatalogModel, error)
}

// CustomModelStore reads personal models
type CustomModelStore interface {
	GetByID(ctx context.Context, id int64) (*models.UserCustomModel, error)
}

// CredentialStore reads and writes per-user key overrides
type CredentialStore interface {
	Get(ctx context.Context, userID, modelID int64) (*models.UserCredential, error)
	Upsert(ctx context.Context, userID, modelID int64, encryptedKey string) error
}

// Cipher is the reversible transform applied to keys at rest
type Cipher interface {
	EncryptString(plaintext string) (string, error)
	DecryptString(ciphertext string) (string, error)
}

// Options configures a Resolver
type Options struct {
	Catalog     CatalogStore
	Personal    CustomModelStore
	Credentials CredentialStore
	Cipher      Cipher
	Descriptors []models.APIDescriptor
	// ProviderKeys holds process-wide keys by native provider tag.
	ProviderKeys map[string]string
}

// Resolver implements the credential precedence chain
type Resolver struct {
	catalog      CatalogStore
	personal     CustomModelStore
	credentials  CredentialStore
	cipher       Cipher
	descriptors  map[string]models.APIDescriptor
	providerKeys map[string]string
	logger       *utils.Logger
}

// NewResolver creates a resolver
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		catalog:      opts.Catalog,
		personal:     opts.Personal,
		credentials:  opts.Credentials,
		cipher:       opts.Cipher,
		descriptors:  make(map[string]models.APIDescriptor, len(opts.Descriptors)),
		providerKeys: make(map[string]string, len(opts.ProviderKeys)),
		logger:       utils.NewLogger("credentials"),
	}
	for _, d := range opts.Descriptors {
		r.descriptors[d.CatalogName()] = d
	}
	for provider, key := range opts.ProviderKeys {
		if key != "" {
			r.providerKeys[strings.ToLower(provider)] = key
		}
	}
	return r
}

// Resolve builds the call configuration for ref on behalf of userID
func (r *Resolver) Resolve(ctx context.Context, userID int64, ref models.ModelRef) (providers.Config, error) {
	switch ref.Kind {
	case models.RefPersonal:
		return r.resolvePersonal(ctx, userID, ref)
	case models.RefGlobal:
		return r.resolveCatalog(ctx, userID, ref)
	default:
		return providers.Config{}, &ResolutionError{Ref: ref, Reason: ReasonNotSelected}
	}
}

func (r *Resolver) resolvePersonal(ctx context.Context, userID int64, ref models.ModelRef) (providers.Config, error) {
	m, err := r.personal.GetByID(ctx, ref.ID)
	if err != nil {
		if errors.Is(err, storage.ErrCustomModelNotFound) {
			return providers.Config{}, &ResolutionError{Ref: ref, Reason: ReasonNotFound}
		}
		return providers.Config{}, fmt.Errorf("failed to load personal model: %w", err)
	}
	if m.UserID != userID {
		return providers.Config{}, &ResolutionError{Ref: ref, Reason: ReasonNotOwned}
	}
	if !m.IsActive {
		return providers.Config{}, &ResolutionError{Ref: ref, Reason: ReasonInactive}
	}

	key, err := r.cipher.DecryptString(m.EncryptedAPIKey)
	if err != nil {
		return providers.Config{}, &CredentialError{Ref: ref, Provider: m.Provider, Err: fmt.Errorf("failed to decrypt key: %w", err)}
	}

	return providers.Config{
		Provider:  m.Provider,
		Endpoint:  m.Endpoint,
		APIKey:    key,
		ModelName: m.ModelName,
		Headers:   providers.DefaultCustomHeaders(),
		Custom:    true,
	}, nil
}

func (r *Resolver) resolveCatalog(ctx context.Context, userID int64, ref models.ModelRef) (providers.Config, error) {
	entry, err := r.catalog.GetByID(ctx, ref.ID)
	if err != nil {
		if errors.Is(err, storage.ErrCatalogModelNotFound) {
			return providers.Config{}, &ResolutionError{Ref: ref, Reason: ReasonNotFound}
		}
		return providers.Config{}, fmt.Errorf("failed to load catalog model: %w", err)
	}
	if !entry.IsActive {
		return providers.Config{}, &ResolutionError{Ref: ref, Reason: ReasonInactive}
	}

	if entry.HasDirectCredentials() {
		key, err := r.cipher.DecryptString(entry.EncryptedAPIKey.String)
		if err != nil {
			return providers.Config{}, &CredentialError{Ref: ref, Provider: entry.Provider, Err: fmt.Errorf("failed to decrypt key: %w", err)}
		}
		params := entry.Parameters
		if len(params) == 0 {
			params = models.DefaultParameters()
		}
		return providers.Config{
			Provider:   entry.Provider,
			Endpoint:   entry.Endpoint.String,
			APIKey:     key,
			ModelName:  entry.ModelName,
			Headers:    entry.Headers.Strings(),
			Parameters: params,
			Custom:     true,
		}, nil
	}

	if d, ok := r.descriptors[entry.ModelName]; ok && d.APIKey != "" {
		return descriptorConfig(d), nil
	}

	return r.resolveKey(ctx, userID, ref, entry)
}

func (r *Resolver) resolveKey(ctx context.Context, userID int64, ref models.ModelRef, entry *models.CatalogModel) (providers.Config, error) {
	cfg := providers.Config{
		Provider:   entry.Provider,
		ModelName:  entry.ModelName,
		Headers:    entry.Headers.Strings(),
		Parameters: entry.Parameters,
	}
	if entry.Endpoint.Valid && entry.Endpoint.String != "" {
		cfg.Endpoint = entry.Endpoint.String
		cfg.Custom = true
		if len(cfg.Parameters) == 0 {
			cfg.Parameters = models.DefaultParameters()
		}
	}

	cred, err := r.credentials.Get(ctx, userID, entry.ID)
	switch {
	case err == nil:
		key, err := r.cipher.DecryptString(cred.EncryptedAPIKey)
		if err != nil {
			return providers.Config{}, &CredentialError{Ref: ref, Provider: entry.Provider, Err: fmt.Errorf("failed to decrypt user key: %w", err)}
		}
		cfg.APIKey = key
		return cfg, nil
	case errors.Is(err, storage.ErrCredentialNotFound):
	default:
		return providers.Config{}, fmt.Errorf("failed to load user credential: %w", err)
	}

	if providers.IsNative(entry.Provider) {
		if key, ok := r.providerKeys[strings.ToLower(entry.Provider)]; ok {
			cfg.APIKey = key
			return cfg, nil
		}
	}

	return providers.Config{}, &CredentialError{Ref: ref, Provider: entry.Provider}
}

// descriptorConfig uses a static descriptor as configured
func descriptorConfig(d models.APIDescriptor) providers.Config {
	cfg := providers.Config{
		Provider:   d.Provider,
		Endpoint:   d.Endpoint,
		APIKey:     d.APIKey,
		ModelName:  d.ModelName,
		Headers:    d.Headers,
		Parameters: d.Parameters,
		Custom:     d.Endpoint != "",
	}
	if cfg.ModelName == "" {
		cfg.ModelName = d.Name
	}
	return cfg
}

// SetUserKey stores key as userID's override for the catalog entry
// catalogID. Personal models carry their own key and are not accepted.
func (r *Resolver) SetUserKey(ctx context.Context, userID, catalogID int64, key string) error {
	ref := models.GlobalRef(catalogID)
	if _, err := r.catalog.GetByID(ctx, catalogID); err != nil {
		if errors.Is(err, storage.ErrCatalogModelNotFound) {
			return &ResolutionError{Ref: ref, Reason: ReasonNotFound}
		}
		return fmt.Errorf("failed to load catalog model: %w", err)
	}

	encrypted, err := r.cipher.EncryptString(key)
	if err != nil {
		return fmt.Errorf("failed to encrypt key: %w", err)
	}

	if err := r.credentials.Upsert(ctx, userID, catalogID, encrypted); err != nil {
		return err
	}

	r.logger.Info("User key stored", "user_id", userID, "model", ref.String(), "key", utils.Fingerprint(key))
	return nil
}
