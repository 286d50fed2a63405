// Package httpapi exposes the bot's small HTTP surface.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/anronharry/TG-bot/internal/utils"
)

// DefaultCheckTimeout bounds each component check
const DefaultCheckTimeout = 2 * time.Second

// HealthChecker is implemented by storage.DB and storage.FastCache
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthResponse is the /healthz body
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

// HealthHandler reports database and cache health
type HealthHandler struct {
	db      HealthChecker
	cache   HealthChecker
	timeout time.Duration
	logger  *utils.Logger
}

// NewHealthHandler creates a health handler. A nil checker reports as down.
func NewHealthHandler(db, cache HealthChecker) *HealthHandler {
	return &HealthHandler{
		db:      db,
		cache:   cache,
		timeout: DefaultCheckTimeout,
		logger:  utils.NewLogger("health"),
	}
}

func (h *HealthHandler) check(ctx context.Context, name string, c HealthChecker) string {
	if c == nil {
		return "down"
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := c.Health(ctx); err != nil {
		h.logger.Warn("Health check failed", "component", name, "error", err)
		return "down"
	}
	return "ok"
}

// ServeHTTP implements http.Handler
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := HealthResponse{
		Status:   "ok",
		Database: h.check(r.Context(), "database", h.db),
		Cache:    h.check(r.Context(), "cache", h.cache),
	}

	code := http.StatusOK
	if resp.Database != "ok" || resp.Cache != "ok" {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	utils.RespondWithJSON(w, code, resp)
}

// NewRouter registers the public routes
func NewRouter(health *HealthHandler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", health)
	return mux
}

// NewServer builds the HTTP server listening on port
func NewServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}
