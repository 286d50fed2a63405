// Package session tracks conversation sessions and the context used to
// prime model prompts.
//
// A session is alive while the marker current_session:<user> exists. The
// marker is written with the context TTL when a session is minted and is
// not refreshed afterwards, so a session ends a fixed time after it began.
// Recent turns are also kept in the rolling list context:<user>, which
// backs prompt context when the durable store cannot be read.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anronharry/TG-bot/internal/models"
	"github.com/anronharry/TG-bot/internal/providers"
	"github.com/anronharry/TG-bot/internal/utils"
)

// Cache is the subset of the fast cache used for markers and context
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) bool
	Delete(ctx context.Context, keys ...string) bool
	LPush(ctx context.Context, key string, values ...string) bool
	LTrim(ctx context.Context, key string, start, stop int64) bool
	LRange(ctx context.Context, key string, start, stop int64) []string
	Expire(ctx context.Context, key string, ttl time.Duration) bool
	// Available is false when no backend is configured at all
	Available() bool
}

// HistoryWriter persists exchanges. The repository writes synchronously;
// the queue worker writes in the background.
type HistoryWriter interface {
	AppendExchange(ctx context.Context, exchange *models.Exchange) error
}

// HistoryStore reads and wipes durable history
type HistoryStore interface {
	RecentSessionHistory(ctx context.Context, userID int64, sessions int) ([]*models.ChatHistory, error)
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
}

// Config holds session tuning
type Config struct {
	ContextTTL         time.Duration // marker and rolling list lifetime
	ContextMaxMessages int           // rolling list length
	RecentSessions     int           // sessions pulled from durable history
	HistoryLimit       int           // prompt context is capped at 2*HistoryLimit messages
}

// DefaultConfig returns the stock session settings
func DefaultConfig() Config {
	return Config{
		ContextTTL:         900 * time.Second,
		ContextMaxMessages: 20,
		RecentSessions:     3,
		HistoryLimit:       10,
	}
}

// Manager implements the session protocol over the fast cache and the
// durable history store
type Manager struct {
	cache   Cache
	writer  HistoryWriter
	history HistoryStore
	config  Config
	logger  *utils.Logger
	now     func() time.Time
}

// NewManager creates a session manager
func NewManager(cache Cache, writer HistoryWriter, history HistoryStore, config Config) *Manager {
	defaults := DefaultConfig()
	if config.ContextTTL <= 0 {
		config.ContextTTL = defaults.ContextTTL
	}
	if config.ContextMaxMessages <= 0 {
		config.ContextMaxMessages = defaults.ContextMaxMessages
	}
	if config.RecentSessions <= 0 {
		config.RecentSessions = defaults.RecentSessions
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = defaults.HistoryLimit
	}

	return &Manager{
		cache:   cache,
		writer:  writer,
		history: history,
		config:  config,
		logger:  utils.NewLogger("session"),
		now:     time.Now,
	}
}

func markerKey(userID int64) string {
	return fmt.Sprintf("current_session:%d", userID)
}

func contextKey(userID int64) string {
	return fmt.Sprintf("context:%d", userID)
}

// CurrentOrMint returns the live session id, minting one when the marker
// is absent or unreadable
func (m *Manager) CurrentOrMint(ctx context.Context, userID int64) uuid.UUID {
	if raw, ok := m.cache.Get(ctx, markerKey(userID)); ok {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
		m.logger.Warn("Discarding malformed session marker", "user_id", userID, "value", raw)
	}

	id := uuid.New()
	if !m.cache.Set(ctx, markerKey(userID), id.String(), m.config.ContextTTL) {
		m.logger.Warn("Session marker not stored", "user_id", userID, "session_id", id)
	}
	m.logger.Debug("Session started", "user_id", userID, "session_id", id)
	return id
}

// RecordExchange stores a completed turn under the current session. The
// rolling context is updated even when the durable write fails; such a
// failure is returned as a *PersistenceError.
func (m *Manager) RecordExchange(ctx context.Context, userID int64, groupID *int64, userText, assistantText string) (uuid.UUID, error) {
	sessionID := m.CurrentOrMint(ctx, userID)

	m.pushContext(ctx, userID,
		providers.Message{Role: providers.RoleUser, Content: userText},
		providers.Message{Role: providers.RoleAssistant, Content: assistantText},
	)

	exchange := &models.Exchange{
		SessionID:     sessionID,
		UserID:        userID,
		GroupID:       groupID,
		UserText:      userText,
		AssistantText: assistantText,
		CreatedAt:     m.now(),
	}
	if err := m.writer.AppendExchange(ctx, exchange); err != nil {
		return sessionID, &PersistenceError{UserID: userID, SessionID: sessionID, Err: err}
	}

	return sessionID, nil
}

func (m *Manager) pushContext(ctx context.Context, userID int64, messages ...providers.Message) {
	key := contextKey(userID)
	values := make([]string, 0, len(messages))
	for _, msg := range messages {
		b, err := json.Marshal(msg)
		if err != nil {
			m.logger.Error("Failed to encode context message", "user_id", userID, "error", err)
			return
		}
		values = append(values, string(b))
	}

	if !m.cache.LPush(ctx, key, values...) {
		return
	}
	m.cache.LTrim(ctx, key, 0, int64(m.config.ContextMaxMessages-1))
	m.cache.Expire(ctx, key, m.config.ContextTTL)
}

// RecentHistory returns the turns of the most recently active sessions in
// chronological order, capped to the newest 2*HistoryLimit messages
func (m *Manager) RecentHistory(ctx context.Context, userID int64) []providers.Message {
	rows, err := m.history.RecentSessionHistory(ctx, userID, m.config.RecentSessions)
	if err != nil {
		m.logger.Warn("Durable history unavailable, using rolling context", "user_id", userID, "error", err)
		return m.capMessages(m.contextMessages(ctx, userID))
	}

	messages := make([]providers.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, providers.Message{Role: row.Role, Content: row.Content})
	}
	return m.capMessages(messages)
}

func (m *Manager) capMessages(messages []providers.Message) []providers.Message {
	limit := m.config.HistoryLimit * 2
	if len(messages) > limit {
		return messages[len(messages)-limit:]
	}
	return messages
}

// contextMessages reads the rolling list oldest first
func (m *Manager) contextMessages(ctx context.Context, userID int64) []providers.Message {
	raw := m.cache.LRange(ctx, contextKey(userID), 0, -1)
	messages := make([]providers.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg providers.Message
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}

// ClearResult reports what a Clear call managed to remove
type ClearResult struct {
	MarkerCleared  bool
	ContextCleared bool
	HistoryDeleted int64
	Err            error // joined failures of the individual steps
}

// Clear removes the session marker, the rolling context and, when
// wipeHistory is set, every durable history row of the user. Each step
// runs regardless of the others failing. An unconfigured cache counts as
// already cleared; a reachable cache that rejects the delete does not.
func (m *Manager) Clear(ctx context.Context, userID int64, wipeHistory bool) ClearResult {
	var result ClearResult
	var errs []error

	if m.cache.Available() {
		result.MarkerCleared = m.cache.Delete(ctx, markerKey(userID))
		if !result.MarkerCleared {
			errs = append(errs, errors.New("session marker not cleared"))
		}

		result.ContextCleared = m.cache.Delete(ctx, contextKey(userID))
		if !result.ContextCleared {
			errs = append(errs, errors.New("rolling context not cleared"))
		}
	} else {
		// without a cache there is no marker or rolling context to remove
		result.MarkerCleared = true
		result.ContextCleared = true
	}

	if wipeHistory {
		n, err := m.history.DeleteByUser(ctx, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("history not deleted: %w", err))
		}
		result.HistoryDeleted = n
	}

	result.Err = errors.Join(errs...)
	if result.Err != nil {
		m.logger.Warn("Context clear incomplete", "user_id", userID, "error", result.Err)
	} else {
		m.logger.Info("Context cleared", "user_id", userID, "history_deleted", result.HistoryDeleted)
	}
	return result
}
