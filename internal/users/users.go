// Package users bootstraps chat users and answers moderation questions.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/anronharry/TG-bot/internal/models"
	"github.com/anronharry/TG-bot/internal/storage"
	"github.com/anronharry/TG-bot/internal/utils"
)

// PermissionTTL is how long a ban lookup stays cached
const PermissionTTL = 300 * time.Second

const (
	permBanned = "banned"
	permActive = "active"
)

// ErrCannotBanAdmin is returned when a moderator targets an admin
var ErrCannotBanAdmin = errors.New("admins cannot be banned")

// Store is the user persistence used by the service
type Store interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
	SetBanned(ctx context.Context, id int64, banned bool) (bool, error)
}

// Cache holds permission lookups
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) bool
	Delete(ctx context.Context, keys ...string) bool
}

// Profile is what the transport knows about a sender
type Profile struct {
	ID        int64
	Username  string
	FirstName string
}

// Service implements user bootstrap and moderation
type Service struct {
	store  Store
	cache  Cache
	admins map[int64]struct{}
	logger *utils.Logger
}

// NewService creates a user service. adminIDs are the bot administrators.
func NewService(store Store, cache Cache, adminIDs []int64) *Service {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Service{
		store:  store,
		cache:  cache,
		admins: admins,
		logger: utils.NewLogger("users"),
	}
}

func permKey(userID int64) string {
	return fmt.Sprintf("user_perms:%d", userID)
}

// Ensure creates the user on first contact and refreshes the handle and
// display name otherwise
func (s *Service) Ensure(ctx context.Context, p Profile) (*models.User, error) {
	user := &models.User{
		ID:        p.ID,
		Username:  sql.NullString{String: p.Username, Valid: p.Username != ""},
		FirstName: p.FirstName,
	}
	if err := s.store.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// IsAdmin reports whether userID is a configured bot administrator
func (s *Service) IsAdmin(userID int64) bool {
	_, ok := s.admins[userID]
	return ok
}

// IsBanned answers from the cache when possible. Unknown users are not
// banned.
func (s *Service) IsBanned(ctx context.Context, userID int64) (bool, error) {
	if v, ok := s.cache.Get(ctx, permKey(userID)); ok {
		switch v {
		case permBanned:
			return true, nil
		case permActive:
			return false, nil
		}
	}

	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}

	value := permActive
	if user.IsBanned {
		value = permBanned
	}
	s.cache.Set(ctx, permKey(userID), value, PermissionTTL)
	return user.IsBanned, nil
}

// Ban flags userID as banned and reports whether the user exists
func (s *Service) Ban(ctx context.Context, userID int64) (bool, error) {
	if s.IsAdmin(userID) {
		return false, ErrCannotBanAdmin
	}
	return s.setBanned(ctx, userID, true)
}

// Unban clears the banned flag and reports whether the user exists
func (s *Service) Unban(ctx context.Context, userID int64) (bool, error) {
	return s.setBanned(ctx, userID, false)
}

func (s *Service) setBanned(ctx context.Context, userID int64, banned bool) (bool, error) {
	found, err := s.store.SetBanned(ctx, userID, banned)
	if err != nil {
		return false, err
	}
	s.cache.Delete(ctx, permKey(userID))

	if found {
		s.logger.Info("Moderation flag updated", "user_id", userID, "banned", banned)
	}
	return found, nil
}
