package api

import (
	"net/http"

	"github.com/erazemk/najdeno/internal/search"
)

// SearchHandler serves ranked semantic search.
type SearchHandler struct {
	Searcher *search.Searcher
}

// Search handles GET /api/search?q=.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	res, err := h.Searcher.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}
