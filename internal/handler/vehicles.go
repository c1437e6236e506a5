package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/middleware"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

// VehicleHandler serves the inventory CRUD surface described in
// spec.md §3.2/§4.1, reading and writing through store.VehicleStore
// rather than raw SQL so every lookup is automatically tenant-scoped.
type VehicleHandler struct {
	stores *store.Stores
	logger *slog.Logger
}

func NewVehicleHandler(stores *store.Stores, logger *slog.Logger) *VehicleHandler {
	return &VehicleHandler{stores: stores, logger: logger}
}

func vehiclePayload(v domain.Vehicle) map[string]any {
	return map[string]any{
		"id":                  v.ID,
		"dealershipId":        v.DealershipID,
		"year":                v.Year,
		"make":                v.Make,
		"model":               v.Model,
		"trim":                v.Trim,
		"type":                v.Type,
		"price":               v.Price.String(),
		"odometer":            v.Odometer,
		"vin":                 v.VIN,
		"stockNumber":         v.StockNumber,
		"images":              v.DisplayImages(),
		"carfaxUrl":           v.CarfaxURL,
		"dealerVdpUrl":        v.DealerVdpURL,
		"manualHeadline":      v.ManualHeadline,
		"manualSubheadline":   v.ManualSubheadline,
		"manualDescription":   v.ManualDescription,
		"isManuallyEdited":    v.IsManuallyEdited,
		"marketplacePostedAt": v.MarketplacePostedAt,
		"createdAt":           v.CreatedAt,
		"updatedAt":           v.UpdatedAt,
	}
}

// ListVehicles supports optional make/model filters (case-insensitive
// exact match) and the standard Page bounds (spec.md §4.1). The status
// query parameter is passed along in VehicleFilter but the store does
// not filter on it.
func (h *VehicleHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	filter := store.VehicleFilter{
		Make:   r.URL.Query().Get("make"),
		Model:  r.URL.Query().Get("model"),
		Status: r.URL.Query().Get("status"),
	}

	result, err := h.stores.Vehicles.List(r.Context(), dealership.ID, filter, parsePage(r))
	if err != nil {
		writeError(w, apperr.Internal("vehicles.List", err))
		return
	}

	items := make([]map[string]any, 0, len(result.Items))
	for _, v := range result.Items {
		items = append(items, vehiclePayload(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": result.Total})
}

func (h *VehicleHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperr.Input("invalid vehicle id"))
		return
	}

	v, err := h.stores.Vehicles.Get(r.Context(), id, dealership.ID)
	if store.IsNotFound(err) {
		writeError(w, apperr.NotFound("vehicle not found"))
		return
	}
	if err != nil {
		writeError(w, apperr.Internal("vehicles.Get", err))
		return
	}
	writeJSON(w, http.StatusOK, vehiclePayload(v))
}

type createVehicleRequest struct {
	Year        int     `json:"year"`
	Make        string  `json:"make"`
	Model       string  `json:"model"`
	Trim        string  `json:"trim"`
	Type        string  `json:"type"`
	Price       float64 `json:"price"`
	Odometer    int     `json:"odometer"`
	VIN         string  `json:"vin"`
	StockNumber string  `json:"stockNumber"`
}

// CreateVehicle is the manual-entry counterpart to the scraper/import
// paths in internal/inventory — it writes a single vehicle flagged as
// manually edited, so a later scrape merge (inventory.MergeScraped)
// keeps its trim; scraped non-empty fields still overwrite the rest.
func (h *VehicleHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	var req createVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}
	if len(req.VIN) != 17 {
		writeError(w, apperr.InputField("vin", "vin must be 17 characters"))
		return
	}
	if req.Make == "" || req.Model == "" {
		writeError(w, apperr.Input("make and model are required"))
		return
	}

	created, err := h.stores.Vehicles.Create(r.Context(), domain.Vehicle{
		DealershipID:     dealership.ID,
		Year:             req.Year,
		Make:             req.Make,
		Model:            req.Model,
		Trim:             req.Trim,
		Type:             req.Type,
		Price:            decimal.NewFromFloat(req.Price),
		Odometer:         req.Odometer,
		VIN:              req.VIN,
		StockNumber:      req.StockNumber,
		IsManuallyEdited: true,
	})
	if err != nil {
		writeError(w, apperr.Internal("vehicles.Create", err))
		return
	}
	writeJSON(w, http.StatusCreated, vehiclePayload(created))
}

type updateVehicleRequest struct {
	Year              *int     `json:"year"`
	Make              *string  `json:"make"`
	Model             *string  `json:"model"`
	Trim              *string  `json:"trim"`
	Price             *float64 `json:"price"`
	Odometer          *int     `json:"odometer"`
	ManualHeadline    *string  `json:"manualHeadline"`
	ManualSubheadline *string  `json:"manualSubheadline"`
	ManualDescription *string  `json:"manualDescription"`
}

// UpdateVehicle sets IsManuallyEdited, so the scraper's merge
// (inventory.MergeScraped) keeps a staff-edited trim; manual headline,
// subheadline and description are never touched by a scrape. Scraped
// year/make/model, price, odometer and images still replace staff edits.
func (h *VehicleHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperr.Input("invalid vehicle id"))
		return
	}

	v, err := h.stores.Vehicles.Get(r.Context(), id, dealership.ID)
	if store.IsNotFound(err) {
		writeError(w, apperr.NotFound("vehicle not found"))
		return
	}
	if err != nil {
		writeError(w, apperr.Internal("vehicles.UpdateVehicle.get", err))
		return
	}

	var req updateVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}

	if req.Year != nil {
		v.Year = *req.Year
	}
	if req.Make != nil {
		v.Make = *req.Make
	}
	if req.Model != nil {
		v.Model = *req.Model
	}
	if req.Trim != nil {
		v.Trim = *req.Trim
	}
	if req.Price != nil {
		v.Price = decimal.NewFromFloat(*req.Price)
	}
	if req.Odometer != nil {
		v.Odometer = *req.Odometer
	}
	if req.ManualHeadline != nil {
		v.ManualHeadline = *req.ManualHeadline
	}
	if req.ManualSubheadline != nil {
		v.ManualSubheadline = *req.ManualSubheadline
	}
	if req.ManualDescription != nil {
		v.ManualDescription = *req.ManualDescription
	}
	v.IsManuallyEdited = true

	if err := h.stores.Vehicles.Update(r.Context(), v); err != nil {
		writeError(w, apperr.Internal("vehicles.Update", err))
		return
	}
	writeJSON(w, http.StatusOK, vehiclePayload(v))
}

func (h *VehicleHandler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperr.Input("invalid vehicle id"))
		return
	}

	if err := h.stores.Vehicles.Delete(r.Context(), id, dealership.ID); err != nil {
		writeError(w, apperr.Internal("vehicles.Delete", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
