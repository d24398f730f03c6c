package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/erazemk/najdeno/internal/events"
	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/imaging"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// Indexer schedules background embedding of an item.
type Indexer interface {
	Enqueue(item *model.Item) bool
}

// ItemsHandler handles item registration, listing and photo endpoints.
type ItemsHandler struct {
	DB      *sql.DB
	Indexer Indexer
	Events  events.Publisher
}

type createItemRequest struct {
	signedRequest
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Tags        []string `json:"tags"`
	TokenID     string   `json:"tokenId"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.ItemFilter{Status: r.URL.Query().Get("status")}
	if filter.Status != "" && !validItemStatus(filter.Status) {
		jsonError(w, r, badRequest("invalid status %q", filter.Status))
		return
	}
	if f := r.URL.Query().Get("finder"); f != "" {
		id, err := identity.Parse(f)
		if err != nil {
			jsonError(w, r, badRequest("invalid finder address"))
			return
		}
		filter.Finder = id
	}

	items, err := store.ListItems(r.Context(), h.DB, filter)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	public := make([]*model.Item, 0, len(items))
	for i := range items {
		public = append(public, items[i].Public())
	}
	jsonResponse(w, http.StatusOK, public)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	finder, err := decodeSigned(r, &req)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, r, badRequest("name required"))
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, store.ItemParams{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		Finder:      finder,
		Tags:        req.Tags,
		TokenID:     strings.TrimSpace(req.TokenID),
	})
	if err != nil {
		jsonError(w, r, err)
		return
	}

	if h.Indexer != nil {
		h.Indexer.Enqueue(item)
	}
	if h.Events != nil {
		h.Events.Publish(r.Context(), events.Event{
			Type:    events.ItemCreated,
			ItemID:  item.ID,
			Actor:   finder.String(),
			Status:  item.Status,
			Version: item.Version,
			At:      item.CreatedAt,
		})
	}

	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.load(r)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item.Public())
}

// Mine handles POST /api/items/mine: the caller's found items with full
// claim details.
func (h *ItemsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	var req struct{ signedRequest }
	caller, err := decodeSigned(r, &req)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, store.ItemFilter{Finder: caller})
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// UploadImage handles PUT /api/items/{id}/image. The signature fields are
// sent as multipart form values next to the image file.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxPhotoBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxPhotoBytes); err != nil {
		jsonError(w, r, badRequest("file too large or invalid multipart form"))
		return
	}

	caller, err := signedRequest{
		Signature:        r.FormValue("signature"),
		SignatureMessage: r.FormValue("signatureMessage"),
		Address:          r.FormValue("address"),
	}.verify()
	if err != nil {
		jsonError(w, r, err)
		return
	}

	item, err := h.load(r)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if item.Finder != caller {
		jsonError(w, r, lifecycle.ErrUnauthorized)
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, r, badRequest("image file required"))
		return
	}
	defer file.Close()

	photo, err := imaging.ProcessPhoto(file)
	if err != nil {
		jsonError(w, r, badRequest("%v", err))
		return
	}

	if err := store.SetItemImage(r.Context(), h.DB, item.ID, photo.Data, imaging.PhotoMIME, photo.ETag); err != nil {
		jsonError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{"etag": photo.ETag, "width": photo.Width, "height": photo.Height})
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	data, mime, etag, err := store.GetItemImage(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if data == nil {
		jsonError(w, r, fmt.Errorf("%w: no image", lifecycle.ErrNotFound))
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	if etag != "" {
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Content-Type", mime)
	w.Write(data)
}

type metadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Metadata handles GET /api/items/{id}/metadata: an ERC-721 metadata
// document usable as the item token's URI.
func (h *ItemsHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	item, err := h.load(r)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	attrs := []metadataAttribute{
		{TraitType: "Status", Value: item.Status},
		{TraitType: "Finder", Value: item.Finder.String()},
	}
	if item.Location != "" {
		attrs = append(attrs, metadataAttribute{TraitType: "Location", Value: item.Location})
	}
	for _, tag := range item.Tags {
		attrs = append(attrs, metadataAttribute{TraitType: "Tag", Value: tag})
	}

	doc := map[string]any{
		"name":        item.Name,
		"description": item.Description,
		"attributes":  attrs,
	}
	if item.ImageMime != "" {
		doc["image"] = baseURL(r) + "/api/items/" + item.ID + "/image"
	}
	jsonResponse(w, http.StatusOK, doc)
}

func (h *ItemsHandler) load(r *http.Request) (*model.Item, error) {
	item, err := store.GetItem(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item", lifecycle.ErrNotFound)
	}
	return item, nil
}

func validItemStatus(s string) bool {
	switch s {
	case model.ItemStatusAvailable, model.ItemStatusPendingHandover, model.ItemStatusClaimed:
		return true
	}
	return false
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}
