package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/najdeno/internal/chat"
	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// MessagesHandler serves conversation history to its participants.
type MessagesHandler struct {
	DB *sql.DB
}

// History handles POST /api/items/{id}/messages. Messages addressed to the
// caller are marked read; the response shows their state before that.
func (h *MessagesHandler) History(w http.ResponseWriter, r *http.Request) {
	var req struct{ signedRequest }
	caller, err := decodeSigned(r, &req)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	item, err := h.participantItem(r, caller)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	messages, err := store.ListMessages(r.Context(), h.DB, item.ID)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}

	if _, err := store.MarkMessagesRead(r.Context(), h.DB, item.ID, caller); err != nil {
		jsonError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, messages)
}

// Counterparty handles POST /api/items/{id}/counterparty.
func (h *MessagesHandler) Counterparty(w http.ResponseWriter, r *http.Request) {
	var req struct{ signedRequest }
	caller, err := decodeSigned(r, &req)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if item == nil {
		jsonError(w, r, lifecycle.ErrNotFound)
		return
	}

	other, err := chat.Counterparty(caller, item)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"counterparty": other.String()})
}

func (h *MessagesHandler) participantItem(r *http.Request, caller identity.Identity) (*model.Item, error) {
	item, err := store.GetItem(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, lifecycle.ErrNotFound
	}
	if !chat.CanParticipate(caller, item) {
		return nil, lifecycle.ErrUnauthorized
	}
	return item, nil
}
