package wizard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anronharry/TG-bot/internal/models"
	"github.com/anronharry/TG-bot/internal/storage"
)

type fakeValidator struct {
	err   error
	calls int
	got   [3]string
}

func (v *fakeValidator) Validate(ctx context.Context, endpoint, apiKey, modelName string) error {
	v.calls++
	v.got = [3]string{endpoint, apiKey, modelName}
	return v.err
}

type fakeStore struct {
	saved []*models.UserCustomModel
	err   error
}

func (s *fakeStore) Upsert(ctx context.Context, m *models.UserCustomModel) error {
	if s.err != nil {
		return s.err
	}
	m.ID = int64(len(s.saved) + 1)
	m.IsActive = true
	s.saved = append(s.saved, m)
	return nil
}

func newCipher(t *testing.T) *storage.Encryption {
	t.Helper()
	enc, err := storage.NewEncryptionFromSecret("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	return enc
}

const user int64 = 42

func TestWizardHappyPath(t *testing.T) {
	validator := &fakeValidator{}
	store := &fakeStore{}
	cipher := newCipher(t)
	w := New(validator, store, cipher, 0)
	ctx := context.Background()

	reply := w.Start(user)
	assert.Equal(t, StateEndpoint, reply.State)
	assert.True(t, w.Active(user))

	reply, ok := w.Handle(ctx, user, "  https://api.example.com/v1/chat/completions ")
	require.True(t, ok)
	assert.Equal(t, StateAPIKey, reply.State)

	reply, _ = w.Handle(ctx, user, "sk-test-1234567890")
	assert.Equal(t, StateModelName, reply.State)
	assert.NotContains(t, reply.Text, "sk-test-1234567890")

	reply, _ = w.Handle(ctx, user, "gpt-4o")
	assert.Equal(t, StateCustomName, reply.State)
	assert.Equal(t, 1, validator.calls)
	assert.Equal(t, [3]string{"https://api.example.com/v1/chat/completions", "sk-test-1234567890", "gpt-4o"}, validator.got)

	reply, _ = w.Handle(ctx, user, "My GPT")
	assert.True(t, reply.Finished)
	require.NotNil(t, reply.Saved)
	assert.False(t, w.Active(user))

	require.Len(t, store.saved, 1)
	m := store.saved[0]
	assert.Equal(t, user, m.UserID)
	assert.Equal(t, "My GPT", m.CustomName)
	assert.Equal(t, "custom-My GPT", m.Provider)
	assert.Equal(t, "gpt-4o", m.ModelName)
	assert.NotEqual(t, "sk-test-1234567890", m.EncryptedAPIKey)

	plain, err := cipher.DecryptString(m.EncryptedAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-1234567890", plain)
}

func TestWizardRepromptsOnInvalidInput(t *testing.T) {
	w := New(&fakeValidator{}, &fakeStore{}, newCipher(t), 0)
	ctx := context.Background()
	w.Start(user)

	reply, _ := w.Handle(ctx, user, "ftp://example.com")
	assert.Equal(t, StateEndpoint, reply.State)
	assert.False(t, reply.Finished)

	w.Handle(ctx, user, "http://localhost:8000/v1/chat/completions")
	reply, _ = w.Handle(ctx, user, "short")
	assert.Equal(t, StateAPIKey, reply.State)

	w.Handle(ctx, user, "0123456789")
	reply, _ = w.Handle(ctx, user, "x")
	assert.Equal(t, StateModelName, reply.State)

	w.Handle(ctx, user, "llama3")
	reply, _ = w.Handle(ctx, user, "a")
	assert.Equal(t, StateCustomName, reply.State)
	assert.True(t, w.Active(user))
}

func TestWizardValidationFailureDiscardsEverything(t *testing.T) {
	validator := &fakeValidator{err: errors.New("status 401")}
	store := &fakeStore{}
	w := New(validator, store, newCipher(t), 0)
	ctx := context.Background()

	w.Start(user)
	w.Handle(ctx, user, "https://api.example.com/v1/chat/completions")
	w.Handle(ctx, user, "sk-test-1234567890")
	reply, _ := w.Handle(ctx, user, "gpt-4o")

	assert.True(t, reply.Finished)
	assert.Nil(t, reply.Saved)
	assert.False(t, w.Active(user))
	assert.Empty(t, store.saved)

	_, ok := w.Handle(ctx, user, "My GPT")
	assert.False(t, ok, "no flow after a failed validation")
}

func TestWizardCancel(t *testing.T) {
	w := New(&fakeValidator{}, &fakeStore{}, newCipher(t), 0)
	ctx := context.Background()

	assert.False(t, w.Cancel(user))

	w.Start(user)
	w.Handle(ctx, user, "https://api.example.com/v1/chat/completions")
	assert.True(t, w.Cancel(user))
	assert.False(t, w.Active(user))

	_, ok := w.Handle(ctx, user, "sk-test-1234567890")
	assert.False(t, ok)
}

func TestWizardIdleTimeout(t *testing.T) {
	w := New(&fakeValidator{}, &fakeStore{}, newCipher(t), time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	w.Start(user)
	w.Start(user + 1)

	now = now.Add(30 * time.Second)
	_, ok := w.Handle(context.Background(), user, "https://api.example.com/v1/chat/completions")
	require.True(t, ok)

	now = now.Add(45 * time.Second)
	assert.True(t, w.Active(user), "activity refreshes the idle timer")
	assert.Equal(t, 1, w.Sweep())

	now = now.Add(2 * time.Minute)
	assert.False(t, w.Active(user))
}

func TestWizardSaveFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	w := New(&fakeValidator{}, store, newCipher(t), 0)
	ctx := context.Background()

	w.Start(user)
	w.Handle(ctx, user, "https://api.example.com/v1/chat/completions")
	w.Handle(ctx, user, "sk-test-1234567890")
	w.Handle(ctx, user, "gpt-4o")
	reply, _ := w.Handle(ctx, user, "My GPT")

	assert.True(t, reply.Finished)
	assert.Nil(t, reply.Saved)
	assert.False(t, w.Active(user))
}

func TestWizardWithoutEncryptionFailsClosed(t *testing.T) {
	store := &fakeStore{}
	var cipher *storage.Encryption
	w := New(&fakeValidator{}, store, cipher, 0)
	ctx := context.Background()

	w.Start(user)
	w.Handle(ctx, user, "https://api.example.com/v1/chat/completions")
	w.Handle(ctx, user, "sk-test-1234567890")
	w.Handle(ctx, user, "gpt-4o")
	reply, _ := w.Handle(ctx, user, "My GPT")

	assert.Nil(t, reply.Saved)
	assert.Empty(t, store.saved)
}

// blockingValidator holds Validate until release is closed
type blockingValidator struct {
	started chan struct{}
	release chan struct{}
}

func (v *blockingValidator) Validate(ctx context.Context, endpoint, apiKey, modelName string) error {
	close(v.started)
	<-v.release
	return nil
}

func TestWizardMessageDuringValidation(t *testing.T) {
	validator := &blockingValidator{started: make(chan struct{}), release: make(chan struct{})}
	w := New(validator, &fakeStore{}, newCipher(t), 0)
	ctx := context.Background()

	w.Start(user)
	w.Handle(ctx, user, "https://api.example.com/v1/chat/completions")
	w.Handle(ctx, user, "sk-test-1234567890")

	done := make(chan Reply, 1)
	go func() {
		reply, _ := w.Handle(ctx, user, "gpt-4o")
		done <- reply
	}()
	<-validator.started

	reply, ok := w.Handle(ctx, user, "hello?")
	require.True(t, ok)
	assert.Equal(t, StateModelName, reply.State)
	assert.Contains(t, reply.Text, "Still testing")

	close(validator.release)
	select {
	case reply = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("validation did not finish")
	}
	assert.Equal(t, StateCustomName, reply.State)
}
