package settlement

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "keymarket/pkg/domain"
	dErrors "keymarket/pkg/domain-errors"
	"keymarket/pkg/platform/httputil"
	"keymarket/pkg/requestcontext"
)

// Handler exposes the purchase endpoint. The buyer is the authenticated
// principal; the encrypted key arrives base64-encoded from the seller-side
// key-wrapping flow.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/purchases", h.handlePurchase)
}

type purchaseRequest struct {
	ListingID     string `json:"listing_id"`
	PaymentAmount uint64 `json:"payment_amount"`
	EncryptedKey  string `json:"encrypted_key"`
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	listingID, err := id.ParseListingID(req.ListingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	key, err := base64.StdEncoding.DecodeString(req.EncryptedKey)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "encrypted key must be base64"))
		return
	}

	receipt, err := h.service.Purchase(ctx, listingID, requestcontext.Principal(ctx), req.PaymentAmount, key)
	if err != nil {
		h.logger.WarnContext(ctx, "purchase failed",
			"request_id", requestcontext.RequestID(ctx),
			"listing_id", listingID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, receipt)
}
