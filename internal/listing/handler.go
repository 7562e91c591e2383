package listing

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

// Handler exposes the listing ledger over HTTP. Purchase goes through the
// settlement handler, not here; this surface covers the seller-side
// lifecycle and browsing.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/listings", h.handleCreate)
	r.Get("/listings/mine", h.handleMine)
	r.Patch("/listings/{listingID}", h.handleUpdate)
	r.Post("/listings/{listingID}/delist", h.handleDelist)
}

// RegisterPublic wires the read-only marketplace surface. Browsing and the
// fee schedule need no authentication.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/listings", h.handleBrowse)
	r.Get("/listings/{listingID}", h.handleGet)
	r.Get("/config/fee", h.handleFee)
}

type createRequest struct {
	AssetID      string `json:"asset_id"`
	Price        uint64 `json:"price"`
	PolicyKind   string `json:"policy_kind"`
	DurationDays uint32 `json:"duration_days"`
	Terms        string `json:"terms"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	assetID, err := id.ParseAssetID(req.AssetID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	policy := AccessPolicy{Kind: PolicyKind(req.PolicyKind), DurationDays: req.DurationDays}

	l, err := h.service.List(ctx, assetID, requestcontext.Principal(ctx), req.Price, policy, req.Terms)
	if err != nil {
		h.logger.WarnContext(ctx, "create listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, l)
}

func (h *Handler) handleBrowse(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.Browse(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listings)
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listings, err := h.service.ListBySeller(ctx, requestcontext.Principal(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listings)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	l, err := h.service.Get(r.Context(), listingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

type updateRequest struct {
	Price uint64 `json:"price"`
	Terms string `json:"terms"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	l, err := h.service.Update(ctx, listingID, requestcontext.Principal(ctx), req.Price, req.Terms)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) handleDelist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	l, err := h.service.Delist(ctx, listingID, requestcontext.Principal(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) handleFee(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"fee_percent": h.service.FeePercent()})
}
