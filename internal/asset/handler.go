package asset

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "keymarket/pkg/domain"
	dErrors "keymarket/pkg/domain-errors"
	"keymarket/pkg/platform/httputil"
	"keymarket/pkg/requestcontext"
)

// Handler exposes the asset registry over HTTP. It delegates to the service
// without embedding business logic.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts asset routes. The router is expected to already carry the
// platform middleware chain including auth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/assets", h.handleMint)
	r.Get("/assets", h.handleListMine)
	r.Get("/assets/{assetID}", h.handleGet)
	r.Post("/assets/{assetID}/transfer", h.handleTransfer)
	r.Delete("/assets/{assetID}", h.handleBurn)
}

type mintRequest struct {
	ContentRef string `json:"content_ref"`
	AssetID    string `json:"asset_id,omitempty"`
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Principal(ctx)

	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	var requestedID id.AssetID
	if req.AssetID != "" {
		parsed, err := id.ParseAssetID(req.AssetID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		requestedID = parsed
	}

	a, err := h.service.Mint(ctx, caller, req.ContentRef, requestedID)
	if err != nil {
		h.logger.WarnContext(ctx, "mint failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.service.Get(r.Context(), assetID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assets, err := h.service.ListByOwner(ctx, requestcontext.Principal(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, assets)
}

type transferRequest struct {
	To string `json:"to"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	to, err := id.ParsePrincipal(req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	a, err := h.service.Transfer(ctx, assetID, requestcontext.Principal(ctx), to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleBurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Burn(ctx, assetID, requestcontext.Principal(ctx)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
