package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/anronharry/TG-bot/internal/utils"
)

// GlobalKey is the limiter key shared by every user
const GlobalKey = "global"

// Limits configures the chat turn guard
type Limits struct {
	Global int // turns per window across all users, 0 disables
	User   int // turns per window per user, 0 disables
}

// Decision is the outcome of a guard check
type Decision struct {
	Allowed   bool
	Scope     string // "global" or "user" when denied
	Remaining int
	ResetAt   time.Time
}

// Guard applies the global and per-user limits to chat turns
type Guard struct {
	limiter Limiter
	limits  Limits
	logger  *utils.Logger
}

// NewGuard creates a guard. A nil limiter allows everything.
func NewGuard(limiter Limiter, limits Limits) *Guard {
	if limiter == nil {
		limiter = NewNoopLimiter()
	}
	return &Guard{limiter: limiter, limits: limits, logger: utils.NewLogger("ratelimit")}
}

func userKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// AllowTurn checks the user's limit and then the global limit, so turns
// denied for one user never count against the shared window. A limiter
// failure allows the turn.
func (g *Guard) AllowTurn(ctx context.Context, userID int64) Decision {
	remaining := -1
	allowed, userRemaining, resetAt, err := g.limiter.AllowWithDetails(ctx, userKey(userID), g.limits.User)
	if err != nil {
		g.logger.Warn("User rate limit check failed, allowing turn", "user_id", userID, "error", err)
	} else if !allowed {
		g.logger.Info("User rate limit exceeded", "user_id", userID, "reset_at", resetAt)
		return Decision{Scope: "user", ResetAt: resetAt}
	} else {
		remaining = userRemaining
	}
	userReset := resetAt

	allowed, _, resetAt, err = g.limiter.AllowWithDetails(ctx, GlobalKey, g.limits.Global)
	if err != nil {
		g.logger.Warn("Global rate limit check failed, allowing turn", "user_id", userID, "error", err)
		return Decision{Allowed: true, Remaining: -1}
	}
	if !allowed {
		g.logger.Info("Global rate limit exceeded", "user_id", userID, "reset_at", resetAt)
		return Decision{Scope: "global", ResetAt: resetAt}
	}
	return Decision{Allowed: true, Remaining: remaining, ResetAt: userReset}
}
