package inventory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

const maxBulkImportItems = 100

// ImportItem is one record in a bulk-import payload.
type ImportItem struct {
	Vehicle        domain.Vehicle
	UpdateExisting bool
}

// ImportItemError pairs a failed item with its index in the payload so
// the caller can report per-item failures without aborting the batch.
type ImportItemError struct {
	Index int    `json:"index"`
	VIN   string `json:"vin"`
	Error string `json:"error"`
}

type ImportResult struct {
	Created int               `json:"created"`
	Updated int               `json:"updated"`
	Failed  int               `json:"failed"`
	Errors  []ImportItemError `json:"errors"`
}

// Imported is the total of Created and Updated, the count spec.md's
// literal import response reports as "imported".
func (r ImportResult) Imported() int { return r.Created + r.Updated }

// MarshalJSON flattens Imported() alongside the stored fields so the
// response body matches spec.md's documented `{imported, failed, ...}`
// shape without a parallel handler-side payload struct.
func (r ImportResult) MarshalJSON() ([]byte, error) {
	type alias ImportResult
	return json.Marshal(struct {
		alias
		Imported int `json:"imported"`
	}{alias: alias(r), Imported: r.Imported()})
}

type BulkImporter struct {
	vehicles store.VehicleStore
}

func NewBulkImporter(vehicles store.VehicleStore) *BulkImporter {
	return &BulkImporter{vehicles: vehicles}
}

// Import upserts each item by VIN when UpdateExisting is set, otherwise
// always creates. One bad record never aborts the batch (spec.md §4.4).
func (b *BulkImporter) Import(ctx context.Context, dealershipID int64, items []ImportItem) (ImportResult, error) {
	if len(items) == 0 {
		return ImportResult{}, apperr.Input("vehicles payload is empty")
	}
	if len(items) > maxBulkImportItems {
		return ImportResult{}, apperr.Input(fmt.Sprintf("at most %d vehicles per call", maxBulkImportItems))
	}

	var result ImportResult
	for i, item := range items {
		v := item.Vehicle
		v.DealershipID = dealershipID

		if !isValidVIN(v.VIN) {
			result.Errors = append(result.Errors, ImportItemError{Index: i, VIN: v.VIN, Error: "vin must be 17 characters"})
			continue
		}

		if item.UpdateExisting {
			existing, err := b.vehicles.GetByVIN(ctx, v.VIN, dealershipID)
			if err == nil {
				merged := MergeScraped(existing, scrapedFromVehicle(v))
				merged.ID = existing.ID
				if err := b.vehicles.Update(ctx, merged); err != nil {
					result.Errors = append(result.Errors, ImportItemError{Index: i, VIN: v.VIN, Error: err.Error()})
					continue
				}
				result.Updated++
				continue
			}
			if !store.IsNotFound(err) {
				result.Errors = append(result.Errors, ImportItemError{Index: i, VIN: v.VIN, Error: err.Error()})
				continue
			}
		}

		if _, err := b.vehicles.Create(ctx, v); err != nil {
			result.Errors = append(result.Errors, ImportItemError{Index: i, VIN: v.VIN, Error: err.Error()})
			continue
		}
		result.Created++
	}

	result.Failed = len(result.Errors)
	return result, nil
}

func scrapedFromVehicle(v domain.Vehicle) ScrapedVehicle {
	price, _ := v.Price.Float64()
	return ScrapedVehicle{
		VIN: v.VIN, Year: v.Year, Make: v.Make, Model: v.Model, Trim: v.Trim, Type: v.Type,
		Price: price, Odometer: v.Odometer, StockNumber: v.StockNumber, Images: v.Images,
		CarfaxURL: v.CarfaxURL, DealerVdpURL: v.DealerVdpURL,
	}
}

// SyncResult reports what a bulk delete-subtract did or would do.
// WouldDelete is the count spec.md's literal sync response reports;
// DeletedVINs carries the actual VINs for both the dry-run preview and
// the real delete.
type SyncResult struct {
	DryRun      bool     `json:"dryRun"`
	WouldDelete int      `json:"wouldDelete"`
	DeletedVINs []string `json:"deletedVins"`
}

// Sync implements the delete-subtract safety gate (spec.md §4.4, §8
// invariant 3): refuses an empty vins[] unconditionally, and refuses a
// would-delete set exceeding half the dealership's inventory unless
// confirmDelete is set.
func Sync(ctx context.Context, vehicles store.VehicleStore, dealershipID int64, vins []string, dryRun, confirmDelete bool) (SyncResult, error) {
	if len(vins) == 0 {
		return SyncResult{}, apperr.Input("vins must not be empty")
	}

	if dryRun {
		wouldDelete, err := vehicles.VINsNotIn(ctx, dealershipID, vins)
		if err != nil {
			return SyncResult{}, apperr.Internal("inventory.Sync.dryRun", err)
		}
		return SyncResult{DryRun: true, WouldDelete: len(wouldDelete), DeletedVINs: wouldDelete}, nil
	}

	total, err := vehicles.CountActive(ctx, dealershipID)
	if err != nil {
		return SyncResult{}, apperr.Internal("inventory.Sync.countActive", err)
	}
	if total > 0 {
		wouldDelete, err := vehicles.VINsNotIn(ctx, dealershipID, vins)
		if err != nil {
			return SyncResult{}, apperr.Internal("inventory.Sync.preview", err)
		}
		if !confirmDelete && int64(len(wouldDelete))*2 > total {
			return SyncResult{}, apperr.Input("would delete more than half the inventory; set confirmDelete to proceed")
		}
	}

	_, deletedVINs, err := vehicles.DeleteByVINNotIn(ctx, dealershipID, vins)
	if err != nil {
		return SyncResult{}, apperr.Internal("inventory.Sync.delete", err)
	}
	return SyncResult{WouldDelete: len(deletedVINs), DeletedVINs: deletedVINs}, nil
}
