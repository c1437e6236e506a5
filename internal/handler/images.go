package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/inventory"
	"github.com/ayubfarah/dealer-ops-core/internal/middleware"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

// ImageHandler lets staff attach externally hosted images to a vehicle
// outside the scrape/import paths — it re-downloads and re-stores each
// URL through the same fetcher/blob pair the scraper uses
// (internal/inventory.PersistImages), so a manually attached image is
// re-encoded and durable the same way a scraped one is.
type ImageHandler struct {
	stores  *store.Stores
	fetcher inventory.ImageFetcher
	blob    inventory.BlobStore
	logger  *slog.Logger
}

func NewImageHandler(stores *store.Stores, fetcher inventory.ImageFetcher, blob inventory.BlobStore, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{stores: stores, fetcher: fetcher, blob: blob, logger: logger}
}

type addImageRequest struct {
	URLs []string `json:"urls"`
}

// AddImage is POST /vehicles/{id}/images.
func (h *ImageHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	vehicleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperr.Input("invalid vehicle id"))
		return
	}

	var req addImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, apperr.InputField("urls", "at least one url is required"))
		return
	}

	v, err := h.stores.Vehicles.Get(r.Context(), vehicleID, dealership.ID)
	if store.IsNotFound(err) {
		writeError(w, apperr.NotFound("vehicle not found"))
		return
	}
	if err != nil {
		writeError(w, apperr.Internal("images.AddImage.get", err))
		return
	}

	stored := inventory.PersistImages(r.Context(), h.fetcher, h.blob, dealership.ID, v.ID, req.URLs)
	v.Images = append(v.Images, stored...)
	v.IsManuallyEdited = true
	if err := h.stores.Vehicles.Update(r.Context(), v); err != nil {
		writeError(w, apperr.Internal("images.AddImage.update", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"images": v.Images})
}

// DeleteImage is DELETE /vehicles/{id}/images/{imageId} — imageId is
// the position of the image in the vehicle's Images slice.
func (h *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	vehicleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperr.Input("invalid vehicle id"))
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "imageId"))
	if err != nil {
		writeError(w, apperr.Input("invalid image index"))
		return
	}

	v, err := h.stores.Vehicles.Get(r.Context(), vehicleID, dealership.ID)
	if store.IsNotFound(err) {
		writeError(w, apperr.NotFound("vehicle not found"))
		return
	}
	if err != nil {
		writeError(w, apperr.Internal("images.DeleteImage.get", err))
		return
	}
	if index < 0 || index >= len(v.Images) {
		writeError(w, apperr.NotFound("image not found"))
		return
	}

	v.Images = append(v.Images[:index], v.Images[index+1:]...)
	v.IsManuallyEdited = true
	if err := h.stores.Vehicles.Update(r.Context(), v); err != nil {
		writeError(w, apperr.Internal("images.DeleteImage.update", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": v.Images})
}
