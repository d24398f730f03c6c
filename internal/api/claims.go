package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/najdeno/internal/auth"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/store"
)

// ClaimsHandler drives the claim lifecycle of an item.
type ClaimsHandler struct {
	DB      *sql.DB
	Service *lifecycle.Service
	// Secret verifies transfer confirmation tokens.
	Secret string
}

type submitClaimRequest struct {
	signedRequest
	SecretDetail string `json:"secretDetail"`
}

// Submit handles POST /api/items/{id}/claims.
func (h *ClaimsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitClaimRequest
	caller, err := decodeSigned(r, &req)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	req.SecretDetail = strings.TrimSpace(req.SecretDetail)
	if req.SecretDetail == "" {
		jsonError(w, r, badRequest("secretDetail required"))
		return
	}

	item, claim, err := h.Service.SubmitClaim(r.Context(), r.PathValue("id"), caller, req.SecretDetail)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]any{
		"item":  item.Public(),
		"claim": claim,
	})
}

// Approve handles POST /api/items/{id}/claims/{claimID}/approve.
func (h *ClaimsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req struct{ signedRequest }
	caller, err := decodeSigned(r, &req)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	item, err := h.Service.ApproveClaim(r.Context(), r.PathValue("id"), r.PathValue("claimID"), caller)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Reject handles POST /api/items/{id}/claims/{claimID}/reject.
func (h *ClaimsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req struct{ signedRequest }
	caller, err := decodeSigned(r, &req)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	item, err := h.Service.RejectClaim(r.Context(), r.PathValue("id"), r.PathValue("claimID"), caller)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// CancelHandover handles POST /api/items/{id}/cancel-handover.
func (h *ClaimsHandler) CancelHandover(w http.ResponseWriter, r *http.Request) {
	var req struct{ signedRequest }
	caller, err := decodeSigned(r, &req)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	item, err := h.Service.CancelHandover(r.Context(), r.PathValue("id"), caller)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// ConfirmTransfer handles POST /api/items/{id}/confirm-transfer. The caller
// presents a confirmation token as a Bearer credential; each token is
// accepted once.
func (h *ClaimsHandler) ConfirmTransfer(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		jsonError(w, r, fmt.Errorf("%w: missing confirmation token", lifecycle.ErrUnauthorized))
		return
	}

	c, err := auth.ValidateToken(h.Secret, strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		jsonError(w, r, fmt.Errorf("%w: %w", lifecycle.ErrUnauthorized, err))
		return
	}
	if c.ItemID != r.PathValue("id") {
		jsonError(w, r, fmt.Errorf("%w: token is for a different item", lifecycle.ErrUnauthorized))
		return
	}

	used, err := store.IsTokenUsed(r.Context(), h.DB, c.JTI)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if used {
		jsonError(w, r, fmt.Errorf("%w: confirmation token already used", lifecycle.ErrUnauthorized))
		return
	}

	item, err := h.Service.FinalizeClaim(r.Context(), c.ItemID, c.Owner)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	// The token is spent only once the transfer is recorded, so a failed
	// attempt can be retried with the same token.
	if _, err := store.ConsumeToken(r.Context(), h.DB, c.JTI, c.ExpiresAt); err != nil {
		slog.Error("recording used confirmation token", "jti", c.JTI, "error", err)
	}

	slog.Info("transfer confirmed", "item", item.ID, "owner", c.Owner.String(), "tx", c.TxHash)
	jsonResponse(w, http.StatusOK, item.Public())
}
