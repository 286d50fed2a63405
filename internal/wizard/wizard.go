// Package wizard walks a user through registering a personal
// OpenAI-compatible endpoint: endpoint, key, model name, a live
// validation call and finally the name shown in the model keyboard.
package wizard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anronharry/TG-bot/internal/models"
	"github.com/anronharry/TG-bot/internal/utils"
)

// State is a step of the registration flow
type State int

const (
	StateEndpoint State = iota
	StateAPIKey
	StateModelName
	StateCustomName
)

func (s State) String() string {
	switch s {
	case StateEndpoint:
		return "endpoint"
	case StateAPIKey:
		return "api_key"
	case StateModelName:
		return "model_name"
	case StateCustomName:
		return "custom_name"
	default:
		return "unknown"
	}
}

// DefaultIdleTimeout discards flows nobody answered for this long
const DefaultIdleTimeout = 30 * time.Minute

const (
	minAPIKeyLength = 10
	minNameLength   = 2
)

// Validator performs the connectivity check
type Validator interface {
	Validate(ctx context.Context, endpoint, apiKey, modelName string) error
}

// Store saves the finished registration
type Store interface {
	Upsert(ctx context.Context, m *models.UserCustomModel) error
}

// Cipher encrypts the key before it is stored
type Cipher interface {
	EncryptString(plaintext string) (string, error)
}

// Reply is what the user should be told after a step
type Reply struct {
	Text  string
	State State
	// Finished is set when the flow ended, successfully or not.
	Finished bool
	// Saved is the stored registration on success.
	Saved *models.UserCustomModel
}

type flow struct {
	state      State
	endpoint   string
	apiKey     string
	modelName  string
	validating bool
	touched    time.Time
}

// Wizard tracks one registration flow per user
type Wizard struct {
	mu          sync.Mutex
	flows       map[int64]*flow
	validator   Validator
	store       Store
	cipher      Cipher
	idleTimeout time.Duration
	logger      *utils.Logger
	now         func() time.Time
}

// New creates a wizard. A non-positive idleTimeout uses DefaultIdleTimeout.
func New(validator Validator, store Store, cipher Cipher, idleTimeout time.Duration) *Wizard {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Wizard{
		flows:       make(map[int64]*flow),
		validator:   validator,
		store:       store,
		cipher:      cipher,
		idleTimeout: idleTimeout,
		logger:      utils.NewLogger("wizard"),
		now:         time.Now,
	}
}

// Start begins a new flow for userID, replacing any flow in progress
func (w *Wizard) Start(userID int64) Reply {
	w.mu.Lock()
	w.flows[userID] = &flow{state: StateEndpoint, touched: w.now()}
	w.mu.Unlock()

	w.logger.Info("Custom API setup started", "user_id", userID)
	return Reply{State: StateEndpoint, Text: "🔧 Custom API setup\n\n" +
		"Step 1: API endpoint\n" +
		"Send the full chat completions URL, for example https://api.example.com/v1/chat/completions\n\n" +
		"The endpoint must speak the OpenAI chat completions format.\n" +
		"Send /cancel at any time to abort."}
}

// Active reports whether userID has a live flow
func (w *Wizard) Active(userID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lookup(userID) != nil
}

// Cancel discards the flow of userID and reports whether one existed
func (w *Wizard) Cancel(userID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lookup(userID) == nil {
		return false
	}
	delete(w.flows, userID)
	w.logger.Info("Custom API setup cancelled", "user_id", userID)
	return true
}

// lookup returns the live flow, dropping it when it idled out. Callers
// hold w.mu.
func (w *Wizard) lookup(userID int64) *flow {
	f, ok := w.flows[userID]
	if !ok {
		return nil
	}
	if w.now().Sub(f.touched) > w.idleTimeout {
		delete(w.flows, userID)
		w.logger.Debug("Custom API setup expired", "user_id", userID)
		return nil
	}
	return f
}

// Sweep drops every idle flow and returns how many were removed
func (w *Wizard) Sweep() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	removed := 0
	for id, f := range w.flows {
		if w.now().Sub(f.touched) > w.idleTimeout {
			delete(w.flows, id)
			removed++
		}
	}
	return removed
}

// Run sweeps idle flows every interval until ctx is done
func (w *Wizard) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := w.Sweep(); n > 0 {
				w.logger.Debug("Expired custom API setups removed", "count", n)
			}
		}
	}
}

// Handle feeds one message into the user's flow. ok is false when the
// user has no live flow.
func (w *Wizard) Handle(ctx context.Context, userID int64, text string) (reply Reply, ok bool) {
	text = strings.TrimSpace(text)

	w.mu.Lock()
	f := w.lookup(userID)
	if f == nil {
		w.mu.Unlock()
		return Reply{}, false
	}
	f.touched = w.now()

	if f.validating {
		state := f.state
		w.mu.Unlock()
		return Reply{State: state, Text: "⏳ Still testing the connection, please wait..."}, true
	}

	switch f.state {
	case StateEndpoint:
		defer w.mu.Unlock()
		if !strings.HasPrefix(text, "http://") && !strings.HasPrefix(text, "https://") {
			return Reply{State: f.state, Text: "❌ Invalid endpoint\n\n" +
				"The URL must start with http:// or https://\n" +
				"For example https://api.example.com/v1/chat/completions\n\n" +
				"Please try again:"}, true
		}
		f.endpoint = text
		f.state = StateAPIKey
		return Reply{State: f.state, Text: fmt.Sprintf("✅ Endpoint set\n\nEndpoint: %s\n\n"+
			"Step 2: API key\n"+
			"Send your API key. It is stored encrypted.", text)}, true

	case StateAPIKey:
		defer w.mu.Unlock()
		if len([]rune(text)) < minAPIKeyLength {
			return Reply{State: f.state, Text: "❌ API key too short\n\n" +
				"Please send the complete key.\n\nPlease try again:"}, true
		}
		f.apiKey = text
		f.state = StateModelName
		return Reply{State: f.state, Text: fmt.Sprintf("✅ API key set\n\nKey: %s\n\n"+
			"Step 3: model name\n"+
			"Send the model name used in API calls, for example gpt-4o or claude-3-sonnet.", utils.MaskSecret(text))}, true

	case StateModelName:
		if len([]rune(text)) < minNameLength {
			w.mu.Unlock()
			return Reply{State: f.state, Text: "❌ Model name too short\n\n" +
				"Please send a valid model name.\n\nPlease try again:"}, true
		}
		f.modelName = text
		f.validating = true
		endpoint, apiKey := f.endpoint, f.apiKey
		w.mu.Unlock()
		return w.validate(ctx, userID, f, endpoint, apiKey, text), true

	case StateCustomName:
		if len([]rune(text)) < minNameLength {
			w.mu.Unlock()
			return Reply{State: f.state, Text: "❌ Name too short\n\n" +
				"Please send a name of at least 2 characters.\n\nPlease try again:"}, true
		}
		delete(w.flows, userID)
		w.mu.Unlock()
		return w.save(ctx, userID, f, text), true
	}

	w.mu.Unlock()
	return Reply{}, false
}

func (w *Wizard) validate(ctx context.Context, userID int64, f *flow, endpoint, apiKey, modelName string) Reply {
	err := w.validator.Validate(ctx, endpoint, apiKey, modelName)

	w.mu.Lock()
	defer w.mu.Unlock()

	// The flow may have been cancelled or restarted during the call.
	live := w.flows[userID] == f
	if err != nil {
		if live {
			delete(w.flows, userID)
		}
		w.logger.Warn("Custom API validation failed",
			"user_id", userID,
			"endpoint", endpoint,
			"model", modelName,
			"key", utils.Fingerprint(apiKey),
			"error", err)
		return Reply{State: StateModelName, Finished: true, Text: "❌ Connection test failed\n\n" +
			"Possible causes:\n" +
			"• the endpoint is wrong or unreachable\n" +
			"• the API key is invalid or expired\n" +
			"• the model name is not supported\n" +
			"• the service is temporarily unavailable\n\n" +
			"Check your settings and start again with /customapi"}
	}

	if !live {
		return Reply{State: StateModelName, Finished: true, Text: "Custom API setup was cancelled."}
	}
	f.validating = false
	f.state = StateCustomName
	f.touched = w.now()

	w.logger.Info("Custom API validated", "user_id", userID, "endpoint", endpoint, "model", modelName)
	return Reply{State: f.state, Text: fmt.Sprintf("✅ Connection test passed\n\nEndpoint: %s\nModel: %s\n\n"+
		"Step 4: display name\n"+
		"Send a name for this API. It is shown in the /setmodel list.", endpoint, modelName)}
}

func (w *Wizard) save(ctx context.Context, userID int64, f *flow, customName string) Reply {
	encrypted, err := w.cipher.EncryptString(f.apiKey)
	if err != nil {
		w.logger.Error("Failed to encrypt custom API key", "user_id", userID, "error", err)
		return Reply{State: StateCustomName, Finished: true, Text: "❌ Saving failed\n\nPlease try again later or contact the administrator."}
	}

	m := &models.UserCustomModel{
		UserID:          userID,
		CustomName:      customName,
		ModelName:       f.modelName,
		Provider:        models.CustomProviderLabel(customName),
		Endpoint:        f.endpoint,
		EncryptedAPIKey: encrypted,
	}
	if err := w.store.Upsert(ctx, m); err != nil {
		w.logger.Error("Failed to save custom API", "user_id", userID, "name", customName, "error", err)
		return Reply{State: StateCustomName, Finished: true, Text: "❌ Saving failed\n\nPlease try again later or contact the administrator."}
	}

	w.logger.Info("Custom API saved", "user_id", userID, "id", m.ID, "name", customName, "key", utils.Fingerprint(f.apiKey))
	return Reply{State: StateCustomName, Finished: true, Saved: m, Text: fmt.Sprintf("🎉 Custom API saved\n\n"+
		"Name: %s\nEndpoint: %s\nModel: %s\nStatus: active\n\n"+
		"Pick it with /setmodel.", customName, f.endpoint, f.modelName)}
}
