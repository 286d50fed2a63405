package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/anronharry/TG-bot/internal/chat"
	"github.com/anronharry/TG-bot/internal/models"
	"github.com/anronharry/TG-bot/internal/ratelimit"
	"github.com/anronharry/TG-bot/internal/registry"
	"github.com/anronharry/TG-bot/internal/session"
	"github.com/anronharry/TG-bot/internal/users"
)

type statusError int

func (e statusError) Error() string   { return fmt.Sprintf("telegram status %d", int(e)) }
func (e statusError) StatusCode() int { return int(e) }

type sent struct {
	Outgoing
	ID int
}

type fakeTransport struct {
	mu         sync.Mutex
	nextID     int
	sent       []sent
	deleted    []int
	typing     int
	sendErrs   []error // consumed one per Send call
	sendCalls  int
	chatAdmins map[int64]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nextID: 100, chatAdmins: make(map[int64]bool)}
}

func (f *fakeTransport) Send(ctx context.Context, msg Outgoing) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	f.nextID++
	f.sent = append(f.sent, sent{Outgoing: msg, ID: f.nextID})
	return f.nextID, nil
}

func (f *fakeTransport) Delete(ctx context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeTransport) SendTyping(ctx context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
	return nil
}

func (f *fakeTransport) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatAdmins[userID], nil
}

func (f *fakeTransport) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.Text)
	}
	return out
}

func (f *fakeTransport) last() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) deletedIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.deleted...)
}

type fakeUsers struct {
	admins   map[int64]bool
	banned   map[int64]bool
	known    map[int64]bool
	ensured  []users.Profile
	banCalls []int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{admins: map[int64]bool{}, banned: map[int64]bool{}, known: map[int64]bool{}}
}

func (f *fakeUsers) Ensure(ctx context.Context, p users.Profile) (*models.User, error) {
	f.ensured = append(f.ensured, p)
	f.known[p.ID] = true
	return &models.User{ID: p.ID, FirstName: p.FirstName}, nil
}

func (f *fakeUsers) IsBanned(ctx context.Context, id int64) (bool, error) { return f.banned[id], nil }

func (f *fakeUsers) Ban(ctx context.Context, id int64) (bool, error) {
	if f.admins[id] {
		return false, users.ErrCannotBanAdmin
	}
	f.banCalls = append(f.banCalls, id)
	if !f.known[id] {
		return false, nil
	}
	f.banned[id] = true
	return true, nil
}

func (f *fakeUsers) Unban(ctx context.Context, id int64) (bool, error) {
	if !f.known[id] {
		return false, nil
	}
	f.banned[id] = false
	return true, nil
}

func (f *fakeUsers) IsAdmin(id int64) bool { return f.admins[id] }

type fakeRegistry struct {
	options  []registry.Option
	selected map[int64]registry.Option
}

func newFakeRegistry() *fakeRegistry {
	catalog := &models.CatalogModel{ID: 1, ModelName: "gpt-4.1-nano", Provider: "tbai", IsActive: true}
	personal := &models.UserCustomModel{ID: 5, UserID: 7, CustomName: "Home", ModelName: "llama3", IsActive: true}
	return &fakeRegistry{
		options: []registry.Option{
			{Ref: catalog.Ref(), Display: catalog.DisplayName(), Catalog: catalog},
			{Ref: personal.Ref(), Display: personal.DisplayName(), Personal: personal},
		},
		selected: map[int64]registry.Option{},
	}
}

func (f *fakeRegistry) List(ctx context.Context, userID int64) ([]registry.Option, error) {
	return f.options, nil
}

func (f *fakeRegistry) ResolveByDisplayText(ctx context.Context, userID int64, text string) (*registry.Option, error) {
	for i := range f.options {
		if f.options[i].Display == text {
			return &f.options[i], nil
		}
	}
	return nil, nil
}

func (f *fakeRegistry) SetSelectedModel(ctx context.Context, userID int64, ref models.ModelRef) error {
	for _, o := range f.options {
		if o.Ref == ref {
			f.selected[userID] = o
		}
	}
	return nil
}

func (f *fakeRegistry) CurrentModelName(ctx context.Context, userID int64) (string, error) {
	return f.selected[userID].Display, nil
}

type fakeSessions struct {
	clears []bool
	result session.ClearResult
}

func (f *fakeSessions) Clear(ctx context.Context, userID int64, wipe bool) session.ClearResult {
	f.clears = append(f.clears, wipe)
	return f.result
}

type fakeGenerator struct {
	turns []chat.Turn
	text  string
	err   error
}

func (f *fakeGenerator) Generate(ctx context.Context, turn chat.Turn) (*chat.Result, error) {
	f.turns = append(f.turns, turn)
	if f.err != nil {
		return nil, f.err
	}
	return &chat.Result{Text: f.text, Persisted: true}, nil
}

type fakeKeys struct {
	calls [][2]int64
	keys  []string
	err   error
}

func (f *fakeKeys) SetUserKey(ctx context.Context, userID, catalogID int64, key string) error {
	f.calls = append(f.calls, [2]int64{userID, catalogID})
	f.keys = append(f.keys, key)
	return f.err
}

type fakeValidator struct {
	err   error
	calls int
}

func (f *fakeValidator) Validate(ctx context.Context, endpoint, apiKey, modelName string) error {
	f.calls++
	return f.err
}

type fakeCustomModels struct {
	list []*models.UserCustomModel
}

func (f *fakeCustomModels) ListByUser(ctx context.Context, userID int64) ([]*models.UserCustomModel, error) {
	return f.list, nil
}

type fakeGuard struct {
	deny bool
}

func (f *fakeGuard) AllowTurn(ctx context.Context, userID int64) ratelimit.Decision {
	if f.deny {
		return ratelimit.Decision{Scope: "user"}
	}
	return ratelimit.Decision{Allowed: true}
}

type fakeCustomStore struct {
	saved []*models.UserCustomModel
}

func (f *fakeCustomStore) Upsert(ctx context.Context, m *models.UserCustomModel) error {
	m.ID = int64(len(f.saved) + 1)
	f.saved = append(f.saved, m)
	return nil
}
