package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/vidcurate/backend/internal/logging"
	"github.com/vidcurate/backend/internal/models"
	"github.com/vidcurate/backend/internal/repositories"
	"github.com/vidcurate/backend/internal/videos"
)

// VideoHandler exposes the curated catalog to administrators.
type VideoHandler struct {
	Catalog CatalogService
}

type catalogResponse struct {
	Videos videos.CatalogView  `json:"videos"`
	Total  int                 `json:"total"`
	Record *models.VideoRecord `json:"record,omitempty"`
	Stale  bool                `json:"stale,omitempty"`
}

// List handles GET /api/v1/admin/videos. The optional q and category query
// parameters narrow the returned view; total counts the unfiltered catalog.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}

	query := r.URL.Query()
	category, ok := videos.ParseFilterCategory(query.Get("category"))
	if !ok {
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "unknown category", Field: "category"})
		return
	}

	view, err := h.Catalog.List(ctx)
	if err != nil {
		respondCatalogError(ctx, w, err)
		return
	}

	filtered := videos.Filter(view, strings.TrimSpace(query.Get("q")), category)
	respondJSON(ctx, w, http.StatusOK, catalogResponse{Videos: filtered, Total: len(view)})
}

// Create handles POST /api/v1/admin/videos.
func (h VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "", http.StatusCreated)
}

// Update handles PUT /api/v1/admin/videos/{id}.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		respondJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: "id is required", Field: "id"})
		return
	}
	h.save(w, r, id, http.StatusOK)
}

// Delete handles DELETE /api/v1/admin/videos/{id}?confirm=true.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}

	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	view, err := h.Catalog.Delete(ctx, strings.TrimSpace(r.PathValue("id")), confirmed)
	respondWrite(ctx, w, http.StatusOK, view, err)
}

func (h VideoHandler) save(w http.ResponseWriter, r *http.Request, id string, status int) {
	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}

	var input videos.VideoInput
	if err := decodeJSON(w, r, &input); err != nil {
		logging.FromContext(ctx).Warn("invalid video payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.Catalog.Save(ctx, input, id)
	respondWrite(ctx, w, status, view, err)
}

// respondWrite answers a catalog mutation. A write that reached the store but
// could not be re-read keeps its success status and is flagged stale.
func respondWrite(ctx context.Context, w http.ResponseWriter, status int, view videos.CatalogView, err error) {
	var refreshErr *videos.RefreshError
	switch {
	case errors.As(err, &refreshErr):
		logging.FromContext(ctx).Warn("catalog refresh after write failed", "recordId", refreshErr.Record.ID, "error", refreshErr.Err)
		record := refreshErr.Record
		respondJSON(ctx, w, status, catalogResponse{Videos: videos.CatalogView{}, Record: &record, Stale: true})
	case err != nil:
		respondCatalogError(ctx, w, err)
	default:
		respondJSON(ctx, w, status, catalogResponse{Videos: view, Total: len(view)})
	}
}

func (h VideoHandler) ready(w http.ResponseWriter, r *http.Request) bool {
	if h.Catalog != nil {
		return true
	}
	ctx := r.Context()
	logging.FromContext(ctx).Error("video catalog unavailable")
	respondError(ctx, w, http.StatusInternalServerError, "video catalog unavailable")
	return false
}

func respondCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		validationErr *videos.ValidationError
		loadErr       *videos.LoadError
	)
	switch {
	case errors.As(err, &validationErr):
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: validationErr.Message, Field: validationErr.Field})
	case errors.Is(err, videos.ErrNotConfirmed):
		respondError(ctx, w, http.StatusPreconditionRequired, "deletion must be confirmed")
	case errors.Is(err, repositories.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "video not found")
	case errors.As(err, &loadErr):
		logging.FromContext(ctx).Error("load catalog", "error", err)
		respondError(ctx, w, http.StatusBadGateway, "unable to load videos")
	default:
		logging.FromContext(ctx).Error("catalog operation failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to save changes")
	}
}
