package credentials

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anronharry/TG-bot/internal/models"
	"github.com/anronharry/TG-bot/internal/storage"
)

type fakeCatalog map[int64]*models.CatalogModel

func (f fakeCatalog) GetByID(ctx context.Context, id int64) (*models.CatalogModel, error) {
	if m, ok := f[id]; ok {
		return m, nil
	}
	return nil, storage.ErrCatalogModelNotFound
}

type fakePersonal map[int64]*models.UserCustomModel

func (f fakePersonal) GetByID(ctx context.Context, id int64) (*models.UserCustomModel, error) {
	if m, ok := f[id]; ok {
		return m, nil
	}
	return nil, storage.ErrCustomModelNotFound
}

type credKey struct{ user, model int64 }

type fakeCredentials struct {
	keys map[credKey]string
	err  error
}

func (f *fakeCredentials) Get(ctx context.Context, userID, modelID int64) (*models.UserCredential, error) {
	if f.err != nil {
		return nil, f.err
	}
	enc, ok := f.keys[credKey{userID, modelID}]
	if !ok {
		return nil, storage.ErrCredentialNotFound
	}
	return &models.UserCredential{UserID: userID, ModelID: modelID, EncryptedAPIKey: enc}, nil
}

func (f *fakeCredentials) Upsert(ctx context.Context, userID, modelID int64, encryptedKey string) error {
	if f.err != nil {
		return f.err
	}
	f.keys[credKey{userID, modelID}] = encryptedKey
	return nil
}

const (
	owner    int64 = 1
	stranger int64 = 2
)

type fixture struct {
	resolver *Resolver
	enc      *storage.Encryption
	creds    *fakeCredentials
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	enc, err := storage.NewEncryptionFromSecret("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	encrypt := func(s string) string {
		out, err := enc.EncryptString(s)
		require.NoError(t, err)
		return out
	}

	catalog := fakeCatalog{
		1: {ID: 1, ModelName: "gpt-4.1-nano", Provider: "tbai", IsActive: true,
			Endpoint:        sql.NullString{String: "https://tbai.example/v1/chat/completions", Valid: true},
			EncryptedAPIKey: sql.NullString{String: encrypt("sk-direct"), Valid: true},
			Headers:         models.JSONB{"Accept": "application/json"}},
		2: {ID: 2, ModelName: "GPT-5o", Provider: "relay", IsActive: true},
		3: {ID: 3, ModelName: "gpt-4o", Provider: "OpenAI", IsActive: true},
		4: {ID: 4, ModelName: "claude-3-haiku", Provider: "anthropic", IsActive: true},
		5: {ID: 5, ModelName: "retired", Provider: "openai", IsActive: false},
		6: {ID: 6, ModelName: "mystery", Provider: "someone", IsActive: true},
		7: {ID: 7, ModelName: "self-hosted", Provider: "lab", IsActive: true,
			Endpoint: sql.NullString{String: "https://lab.example/v1/chat/completions", Valid: true}},
	}
	personal := fakePersonal{
		10: {ID: 10, UserID: owner, CustomName: "home", ModelName: "llama3", Provider: "custom-home",
			Endpoint: "https://home.example/v1/chat/completions", EncryptedAPIKey: encrypt("sk-home"), IsActive: true},
		11: {ID: 11, UserID: owner, CustomName: "off", ModelName: "m", Provider: "custom-off",
			Endpoint: "https://off.example", EncryptedAPIKey: encrypt("sk-off"), IsActive: false},
	}
	creds := &fakeCredentials{keys: map[credKey]string{
		{owner, 3}: encrypt("sk-user-openai"),
	}}

	r := NewResolver(Options{
		Catalog:     catalog,
		Personal:    personal,
		Credentials: creds,
		Cipher:      enc,
		Descriptors: []models.APIDescriptor{{
			Name: "GPT-5o", Provider: "relay", ModelName: "GPT-5o",
			Endpoint: "https://relay.example/v1/chat/completions", APIKey: "sk-static",
			Parameters: map[string]any{"temperature": 0.5},
		}},
		ProviderKeys: map[string]string{"OPENAI": "sk-env-openai", "anthropic": "sk-env-anthropic", "someone": "sk-ignored"},
	})

	return &fixture{resolver: r, enc: enc, creds: creds}
}

func requireResolutionError(t *testing.T, err error, reason ResolutionReason) {
	t.Helper()
	var rerr *ResolutionError
	require.True(t, errors.As(err, &rerr), "expected ResolutionError, got %v", err)
	assert.Equal(t, reason, rerr.Reason)
}

func TestResolvePersonal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.resolver.Resolve(ctx, owner, models.PersonalRef(10))
	require.NoError(t, err)
	assert.True(t, cfg.Custom)
	assert.Equal(t, "https://home.example/v1/chat/completions", cfg.Endpoint)
	assert.Equal(t, "sk-home", cfg.APIKey)
	assert.Equal(t, "llama3", cfg.ModelName)
	assert.Equal(t, "application/json", cfg.Headers["Accept"])

	_, err = f.resolver.Resolve(ctx, stranger, models.PersonalRef(10))
	requireResolutionError(t, err, ReasonNotOwned)

	_, err = f.resolver.Resolve(ctx, owner, models.PersonalRef(11))
	requireResolutionError(t, err, ReasonInactive)

	_, err = f.resolver.Resolve(ctx, owner, models.PersonalRef(3))
	requireResolutionError(t, err, ReasonNotFound)
}

func TestResolveRoutesByKind(t *testing.T) {
	f := newFixture(t)

	// Catalog id 10 does not exist even though personal id 10 does.
	_, err := f.resolver.Resolve(context.Background(), owner, models.GlobalRef(10))
	requireResolutionError(t, err, ReasonNotFound)

	_, err = f.resolver.Resolve(context.Background(), owner, models.ModelRef{})
	requireResolutionError(t, err, ReasonNotSelected)
}

func TestResolveCatalogDirectCredentials(t *testing.T) {
	f := newFixture(t)

	cfg, err := f.resolver.Resolve(context.Background(), owner, models.GlobalRef(1))
	require.NoError(t, err)
	assert.True(t, cfg.Custom)
	assert.Equal(t, "sk-direct", cfg.APIKey)
	assert.Equal(t, "gpt-4.1-nano", cfg.ModelName)
	assert.Equal(t, "application/json", cfg.Headers["Accept"])
	assert.Equal(t, 0.7, cfg.Parameters["temperature"])
	assert.Equal(t, 2000, cfg.Parameters["max_tokens"])
	assert.Equal(t, false, cfg.Parameters["stream"])
}

func TestResolveCatalogDescriptor(t *testing.T) {
	f := newFixture(t)

	cfg, err := f.resolver.Resolve(context.Background(), owner, models.GlobalRef(2))
	require.NoError(t, err)
	assert.True(t, cfg.Custom)
	assert.Equal(t, "https://relay.example/v1/chat/completions", cfg.Endpoint)
	assert.Equal(t, "sk-static", cfg.APIKey)
	assert.Equal(t, 0.5, cfg.Parameters["temperature"])
}

func TestResolveUserKeyBeatsProcessKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.resolver.Resolve(ctx, owner, models.GlobalRef(3))
	require.NoError(t, err)
	assert.Equal(t, "sk-user-openai", cfg.APIKey)
	assert.False(t, cfg.Custom)
	assert.Equal(t, "OpenAI", cfg.Provider)

	cfg, err = f.resolver.Resolve(ctx, stranger, models.GlobalRef(3))
	require.NoError(t, err)
	assert.Equal(t, "sk-env-openai", cfg.APIKey)
}

func TestResolveCredentialFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, owner, models.GlobalRef(5))
	requireResolutionError(t, err, ReasonInactive)

	// Process-wide keys only apply to native providers.
	_, err = f.resolver.Resolve(ctx, owner, models.GlobalRef(6))
	var cerr *CredentialError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "someone", cerr.Provider)

	_, err = f.resolver.Resolve(ctx, owner, models.GlobalRef(7))
	require.True(t, errors.As(err, &cerr))
}

func TestResolveEndpointWithUserKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.resolver.SetUserKey(ctx, owner, 7, "sk-lab-key"))

	cfg, err := f.resolver.Resolve(ctx, owner, models.GlobalRef(7))
	require.NoError(t, err)
	assert.True(t, cfg.Custom)
	assert.Equal(t, "https://lab.example/v1/chat/completions", cfg.Endpoint)
	assert.Equal(t, "sk-lab-key", cfg.APIKey)
	assert.Equal(t, 2000, cfg.Parameters["max_tokens"])
}

func TestResolveFailsClosedWithoutCipher(t *testing.T) {
	f := newFixture(t)
	r := NewResolver(Options{
		Catalog:     fakeCatalog{1: {ID: 1, ModelName: "x", Provider: "p", IsActive: true, Endpoint: sql.NullString{String: "https://x", Valid: true}, EncryptedAPIKey: sql.NullString{String: "abc", Valid: true}}},
		Personal:    fakePersonal{},
		Credentials: f.creds,
		Cipher:      (*storage.Encryption)(nil),
	})

	_, err := r.Resolve(context.Background(), owner, models.GlobalRef(1))
	var cerr *CredentialError
	require.True(t, errors.As(err, &cerr))
	assert.ErrorIs(t, err, storage.ErrEncryptionNotConfigured)
}

func TestSetUserKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.resolver.SetUserKey(ctx, stranger, 4, "sk-my-anthropic"))
	stored := f.creds.keys[credKey{stranger, 4}]
	assert.NotEqual(t, "sk-my-anthropic", stored, "keys are stored encrypted")

	plain, err := f.enc.DecryptString(stored)
	require.NoError(t, err)
	assert.Equal(t, "sk-my-anthropic", plain)

	err = f.resolver.SetUserKey(ctx, stranger, 999, "sk-whatever")
	requireResolutionError(t, err, ReasonNotFound)

	f.creds.err = errors.New("db down")
	assert.Error(t, f.resolver.SetUserKey(ctx, stranger, 4, "sk-my-anthropic"))
}
