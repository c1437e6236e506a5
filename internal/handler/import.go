package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/inventory"
	"github.com/ayubfarah/dealer-ops-core/internal/middleware"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

// ImportHandler exposes the bulk-import and delete-subtract sync
// endpoints of spec.md §4.4 — routes are gated by
// middleware.RequireCapabilities(domain.CapImportVehicles) for the
// API-token path.
type ImportHandler struct {
	importer *inventory.BulkImporter
	stores   *store.Stores
	logger   *slog.Logger
}

func NewImportHandler(importer *inventory.BulkImporter, stores *store.Stores, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{importer: importer, stores: stores, logger: logger}
}

type importVehicleItem struct {
	VIN            string   `json:"vin" validate:"required,len=17"`
	Year           int      `json:"year" validate:"required,gte=1900"`
	Make           string   `json:"make" validate:"required"`
	Model          string   `json:"model" validate:"required"`
	Trim           string   `json:"trim"`
	Type           string   `json:"type"`
	Price          float64  `json:"price" validate:"gte=0"`
	Odometer       int      `json:"odometer" validate:"gte=0"`
	StockNumber    string   `json:"stockNumber"`
	Images         []string `json:"images"`
	CarfaxURL      string   `json:"carfaxUrl"`
	DealerVdpURL   string   `json:"dealerVdpUrl"`
	UpdateExisting bool     `json:"updateExisting"`
}

type bulkImportRequest struct {
	Vehicles []importVehicleItem `json:"vehicles" validate:"required,min=1,max=100,dive"`
}

// BulkImport implements POST /import/bulk.
func (h *ImportHandler) BulkImport(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	var req bulkImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, err)
		return
	}

	items := make([]inventory.ImportItem, 0, len(req.Vehicles))
	for _, v := range req.Vehicles {
		items = append(items, inventory.ImportItem{
			Vehicle: domain.Vehicle{
				VIN:          v.VIN,
				Year:         v.Year,
				Make:         v.Make,
				Model:        v.Model,
				Trim:         v.Trim,
				Type:         v.Type,
				Price:        decimal.NewFromFloat(v.Price),
				Odometer:     v.Odometer,
				StockNumber:  v.StockNumber,
				Images:       v.Images,
				CarfaxURL:    v.CarfaxURL,
				DealerVdpURL: v.DealerVdpURL,
			},
			UpdateExisting: v.UpdateExisting,
		})
	}

	result, err := h.importer.Import(r.Context(), dealership.ID, items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type syncVehiclesRequest struct {
	VINs          []string `json:"vins" validate:"dive,required"`
	DryRun        bool     `json:"dryRun"`
	ConfirmDelete bool     `json:"confirmDelete"`
}

// SyncVehicles implements POST /import/sync — the bulk
// delete-subtract operation gated by the 50%-of-inventory safety check
// (spec.md §4.4, §8 invariant 3).
func (h *ImportHandler) SyncVehicles(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	var req syncVehiclesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, err)
		return
	}

	result, err := inventory.Sync(r.Context(), h.stores.Vehicles, dealership.ID, req.VINs, req.DryRun, req.ConfirmDelete)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
