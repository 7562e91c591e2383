package revenue

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "keymarket/pkg/domain-errors"
	"keymarket/pkg/platform/httputil"
	"keymarket/pkg/requestcontext"
)

// Handler exposes the revenue ledger over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/earnings", h.handleBalance)
	r.Post("/earnings/withdraw", h.handleWithdraw)
	r.Get("/platform/fees", h.handlePlatformBalance)
	r.Post("/platform/fees/withdraw", h.handleWithdrawPlatform)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	balance, err := h.service.Balance(ctx, requestcontext.Principal(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"balance": balance})
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	amount, err := h.service.Withdraw(ctx, requestcontext.Principal(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "withdraw failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"withdrawn": amount})
}

func (h *Handler) handlePlatformBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.PlatformBalance(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"balance": balance})
}

type platformWithdrawRequest struct {
	Amount uint64 `json:"amount"`
}

func (h *Handler) handleWithdrawPlatform(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req platformWithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.service.WithdrawPlatformFees(ctx, requestcontext.Principal(ctx), req.Amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"withdrawn": req.Amount})
}
