package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"keymarket/internal/jwtauth"
	id "keymarket/pkg/domain"
	dErrors "keymarket/pkg/domain-errors"
	audit "keymarket/pkg/platform/audit"
	"keymarket/pkg/platform/httputil"
)

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000

	devTokenTTL = 24 * time.Hour
)

// SystemHandler serves the non-domain surface: health, the audit event feed
// for external indexers, and the dev-only login that mints bearer tokens.
type SystemHandler struct {
	checks   map[string]HealthCheck
	events   audit.Store
	tokens   *jwtauth.Service
	devLogin bool
	logger   *slog.Logger
}

func NewSystemHandler(checks map[string]HealthCheck, events audit.Store, tokens *jwtauth.Service, devLogin bool, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{checks: checks, events: events, tokens: tokens, devLogin: devLogin, logger: logger}
}

func (h *SystemHandler) Register(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Get("/audit/events", h.handleEvents)
	if h.devLogin {
		r.Post("/dev/login", h.handleDevLogin)
	}
}

func (h *SystemHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err.Error())
			deps[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	httputil.WriteJSON(w, status, map[string]any{
		"status":       http.StatusText(status),
		"dependencies": deps,
	})
}

func (h *SystemHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(parsed, maxEventLimit)
	}
	events, err := h.events.List(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

type devLoginRequest struct {
	Principal string `json:"principal"`
}

func (h *SystemHandler) handleDevLogin(w http.ResponseWriter, r *http.Request) {
	var req devLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	principal, err := id.ParsePrincipal(req.Principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	token, err := h.tokens.GenerateToken(principal, devTokenTTL)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"token_type":   "Bearer",
		"access_token": token,
	})
}
