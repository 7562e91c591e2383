package access

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

// Handler exposes the credential ledger over HTTP. The validity check is
// registered on the public router (no auth); everything else requires a
// principal.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the authenticated credential routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/credentials", h.handleListMine)
	r.Get("/credentials/{credentialID}", h.handleGet)
	r.Post("/credentials/{credentialID}/revoke", h.handleRevoke)
	r.Post("/credentials/{credentialID}/transfer", h.handleTransfer)
}

// RegisterPublic mounts the unauthenticated validity check. Anyone may verify
// access; that is intentional.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/credentials/{credentialID}/valid", h.handleCheckValid)
}

func (h *Handler) handleCheckValid(w http.ResponseWriter, r *http.Request) {
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	valid, err := h.service.CheckValid(r.Context(), credentialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// credentialResponse is the credential record plus, for the holder only, the
// wrapped key material that the record itself never serializes.
type credentialResponse struct {
	*Credential
	EncryptedKey string `json:"encrypted_key,omitempty"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	caller := requestcontext.Principal(ctx)
	c, err := h.service.Get(ctx, credentialID, caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := credentialResponse{Credential: c}
	if caller == c.Holder {
		resp.EncryptedKey = base64.StdEncoding.EncodeToString(c.EncryptedKey)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	held, err := h.service.ListByHolder(ctx, requestcontext.Principal(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, held)
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.service.Revoke(ctx, credentialID, requestcontext.Principal(ctx), req.Reason); err != nil {
		h.logger.WarnContext(ctx, "revoke failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transferRequest struct {
	To string `json:"to"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
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
	c, err := h.service.Transfer(ctx, credentialID, requestcontext.Principal(ctx), to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}
