// Package chat runs one generation turn: resolve the selected model, build
// the prompt from recent history, call the provider once and record the
// exchange.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/anronharry/TG-bot/internal/credentials"
	"github.com/anronharry/TG-bot/internal/logging"
	"github.com/anronharry/TG-bot/internal/models"
	"github.com/anronharry/TG-bot/internal/providers"
	"github.com/anronharry/TG-bot/internal/session"
	"github.com/anronharry/TG-bot/internal/utils"
)

// DefaultSystemPrompt is used when nothing more specific is configured
const DefaultSystemPrompt = "You are a helpful AI assistant. Please provide accurate and helpful responses to user questions."

// Selector returns the user's selected model
type Selector interface {
	SelectedModel(ctx context.Context, userID int64) (models.ModelRef, bool, error)
}

// Resolver builds the call configuration for a model
type Resolver interface {
	Resolve(ctx context.Context, userID int64, ref models.ModelRef) (providers.Config, error)
}

// Caller performs the provider call
type Caller interface {
	Call(ctx context.Context, cfg providers.Config, messages []providers.Message) (string, error)
}

// Sessions supplies prompt context and records exchanges
type Sessions interface {
	RecentHistory(ctx context.Context, userID int64) []providers.Message
	RecordExchange(ctx context.Context, userID int64, groupID *int64, userText, assistantText string) (uuid.UUID, error)
}

// Prompts holds the configured system prompts
type Prompts struct {
	Default string // SYSTEM_PROMPT
	Admin   string // used for admins when set
}

// Turn is one inbound chat message
type Turn struct {
	UserID  int64
	ChatID  int64
	GroupID *int64
	Text    string
	// SystemPrompt overrides every configured prompt when set.
	SystemPrompt string
	IsAdmin      bool
}

// Result is a successful generation
type Result struct {
	Text      string
	Ref       models.ModelRef
	Provider  string
	ModelName string
	SessionID uuid.UUID
	Persisted bool
}

// Orchestrator runs generation turns
type Orchestrator struct {
	selector Selector
	resolver Resolver
	caller   Caller
	sessions Sessions
	sink     logging.Sink
	prompts  Prompts
	logger   *utils.Logger
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator. A nil sink discards turn records.
func NewOrchestrator(selector Selector, resolver Resolver, caller Caller, sessions Sessions, sink logging.Sink, prompts Prompts) *Orchestrator {
	if sink == nil {
		sink = logging.NewNoopSink()
	}
	return &Orchestrator{
		selector: selector,
		resolver: resolver,
		caller:   caller,
		sessions: sessions,
		sink:     sink,
		prompts:  prompts,
		logger:   utils.NewLogger("chat"),
		now:      time.Now,
	}
}

// SystemPrompt picks the system text for a turn
func (o *Orchestrator) SystemPrompt(turn Turn) string {
	switch {
	case turn.SystemPrompt != "":
		return turn.SystemPrompt
	case turn.IsAdmin && o.prompts.Admin != "":
		return o.prompts.Admin
	case o.prompts.Default != "":
		return o.prompts.Default
	default:
		return DefaultSystemPrompt
	}
}

// Generate answers turn. Resolution, credential and provider failures are
// returned unchanged and leave session state untouched. A failed history
// write after a successful call is logged and does not fail the turn.
func (o *Orchestrator) Generate(ctx context.Context, turn Turn) (*Result, error) {
	start := o.now()
	rec := &logging.TurnRecord{
		Timestamp: start.UTC(),
		TurnID:    uuid.NewString(),
		UserID:    turn.UserID,
		ChatID:    turn.ChatID,
	}
	defer o.emit(rec, start)

	ref, ok, err := o.selector.SelectedModel(ctx, turn.UserID)
	if err != nil {
		return nil, o.fail(rec, err)
	}
	if !ok {
		return nil, o.fail(rec, &credentials.ResolutionError{Reason: credentials.ReasonNotSelected})
	}
	rec.ModelRef = ref.String()

	cfg, err := o.resolver.Resolve(ctx, turn.UserID, ref)
	if err != nil {
		return nil, o.fail(rec, err)
	}
	rec.Provider = cfg.Provider
	rec.ModelName = cfg.ModelName

	messages := session.FormatForModel(o.sessions.RecentHistory(ctx, turn.UserID), o.SystemPrompt(turn))
	messages = append(messages, providers.Message{Role: providers.RoleUser, Content: turn.Text})

	o.logger.Info("Generation started",
		"user_id", turn.UserID,
		"model", ref.String(),
		"provider", cfg.Provider,
		"messages", len(messages))

	callStart := o.now()
	text, err := o.caller.Call(ctx, cfg, messages)
	rec.ProviderMs = o.now().Sub(callStart).Milliseconds()
	if err != nil {
		return nil, o.fail(rec, err)
	}

	result := &Result{
		Text:      text,
		Ref:       ref,
		Provider:  cfg.Provider,
		ModelName: cfg.ModelName,
	}

	sessionID, err := o.sessions.RecordExchange(ctx, turn.UserID, turn.GroupID, turn.Text, text)
	result.SessionID = sessionID
	rec.SessionID = sessionID.String()
	if err != nil {
		o.logger.Error("Failed to persist exchange", "user_id", turn.UserID, "session_id", sessionID, "error", err)
	} else {
		result.Persisted = true
	}

	rec.Outcome = logging.OutcomeSuccess
	rec.Persisted = result.Persisted
	o.logger.Info("Generation finished",
		"user_id", turn.UserID,
		"model", ref.String(),
		"latency_ms", rec.ProviderMs,
		"chars", len(text))
	return result, nil
}

func (o *Orchestrator) fail(rec *logging.TurnRecord, err error) error {
	rec.Outcome = logging.OutcomeFailure
	rec.ErrorClass = ErrorClass(err)

	var perr *providers.ProviderError
	if errors.As(err, &perr) {
		rec.StatusCode = perr.StatusCode
		o.logger.Error("Provider call failed",
			"user_id", rec.UserID,
			"model", rec.ModelRef,
			"provider", perr.Provider,
			"reason", perr.Reason,
			"status", perr.StatusCode,
			"body", perr.Body,
			"error", perr.Err)
	} else {
		o.logger.Warn("Generation aborted", "user_id", rec.UserID, "class", rec.ErrorClass, "error", err)
	}
	return err
}

func (o *Orchestrator) emit(rec *logging.TurnRecord, start time.Time) {
	rec.TotalMs = o.now().Sub(start).Milliseconds()
	if err := o.sink.Enqueue(rec); err != nil {
		o.logger.Warn("Turn record dropped", "turn_id", rec.TurnID, "error", err)
	}
}

// Error classes recorded for failed turns
const (
	ClassResolution = "resolution"
	ClassCredential = "credential"
	ClassProvider   = "provider"
	ClassInternal   = "internal"
)

// ErrorClass maps a generation error onto its taxonomy class
func ErrorClass(err error) string {
	var rerr *credentials.ResolutionError
	var cerr *credentials.CredentialError
	var perr *providers.ProviderError
	switch {
	case errors.As(err, &rerr):
		return ClassResolution
	case errors.As(err, &cerr):
		return ClassCredential
	case errors.As(err, &perr):
		return ClassProvider
	default:
		return ClassInternal
	}
}
