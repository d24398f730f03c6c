package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/najdeno/internal/chat"
	"github.com/erazemk/najdeno/internal/events"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/search"
)

// Deps are the collaborators the API is built from.
type Deps struct {
	DB       *sql.DB
	Service  *lifecycle.Service
	Hub      *chat.Hub
	Searcher *search.Searcher
	Indexer  Indexer
	Events   events.Publisher

	// ConfirmationSecret verifies transfer confirmation tokens.
	ConfirmationSecret string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	items := &ItemsHandler{DB: d.DB, Indexer: d.Indexer, Events: d.Events}
	claims := &ClaimsHandler{DB: d.DB, Service: d.Service, Secret: d.ConfirmationSecret}
	messages := &MessagesHandler{DB: d.DB}
	searchHandler := &SearchHandler{Searcher: d.Searcher}

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Items. Reads are public and never include claim secrets.
	mux.HandleFunc("GET /api/items", items.List)
	mux.HandleFunc("POST /api/items", items.Create)
	mux.HandleFunc("POST /api/items/mine", items.Mine)
	mux.HandleFunc("GET /api/items/{id}", items.Get)
	mux.HandleFunc("PUT /api/items/{id}/image", items.UploadImage)
	mux.HandleFunc("GET /api/items/{id}/image", items.GetImage)
	mux.HandleFunc("GET /api/items/{id}/metadata", items.Metadata)

	// Claim lifecycle.
	mux.HandleFunc("POST /api/items/{id}/claims", claims.Submit)
	mux.HandleFunc("POST /api/items/{id}/claims/{claimID}/approve", claims.Approve)
	mux.HandleFunc("POST /api/items/{id}/claims/{claimID}/reject", claims.Reject)
	mux.HandleFunc("POST /api/items/{id}/cancel-handover", claims.CancelHandover)
	mux.HandleFunc("POST /api/items/{id}/confirm-transfer", claims.ConfirmTransfer)

	// Conversation.
	mux.HandleFunc("POST /api/items/{id}/messages", messages.History)
	mux.HandleFunc("POST /api/items/{id}/counterparty", messages.Counterparty)
	mux.HandleFunc("GET /api/ws", d.Hub.ServeWS)

	mux.HandleFunc("GET /api/search", searchHandler.Search)

	return mux
}
