package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
)

// MergeScraped applies a freshly scraped record onto the stored
// Vehicle. A field only moves if the incoming value is non-empty and
// passes validation; when the vehicle is manually edited, the scrape
// still refreshes price/odometer/images but never headline/subheadline/
// description (spec.md §4.4).
func MergeScraped(existing domain.Vehicle, scraped ScrapedVehicle) domain.Vehicle {
	out := existing

	if isValidVIN(scraped.VIN) {
		out.VIN = scraped.VIN
	}
	if scraped.Year > 0 {
		out.Year = scraped.Year
	}
	if scraped.Make != "" {
		out.Make = scraped.Make
	}
	if scraped.Model != "" {
		out.Model = scraped.Model
	}
	if scraped.Type != "" {
		out.Type = scraped.Type
	}
	if scraped.StockNumber != "" {
		out.StockNumber = scraped.StockNumber
	}
	if scraped.CarfaxURL != "" {
		out.CarfaxURL = scraped.CarfaxURL
	}
	if scraped.DealerVdpURL != "" {
		out.DealerVdpURL = scraped.DealerVdpURL
	}

	// Refreshed regardless of isManuallyEdited.
	if scraped.Price > 0 {
		out.Price = decimal.NewFromFloat(scraped.Price)
	}
	if scraped.Odometer > 0 {
		out.Odometer = scraped.Odometer
	}
	if len(scraped.Images) > 0 {
		out.Images = scraped.Images
	}

	if existing.IsManuallyEdited {
		// Trim is part of the description surface the dealer curates —
		// leave it untouched, same as headline/subheadline/description.
		return out
	}
	if scraped.Trim != "" {
		out.Trim = scraped.Trim
	}
	return out
}

func isValidVIN(vin string) bool {
	return len(vin) == 17
}
