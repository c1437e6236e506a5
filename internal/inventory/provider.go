// Package inventory implements the scraping fallback chain and the
// bulk import/sync pipeline (spec.md §4.4).
package inventory

import (
	"context"
	"time"
)

// FetchResult is what a Provider returns for one source URL: either raw
// HTML (HTTP providers) or a rendered DOM snapshot (headless providers),
// plus the provider's self-reported cost so callers can log it.
type FetchResult struct {
	HTML string
	Cost time.Duration
}

// Provider is one link in the scrape fallback chain (spec.md §4.4):
// "fetch(sourceUrl) → {html|dom, cost}". Each implementation owns its
// own timeout.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, sourceURL string) (FetchResult, error)
}

// VDPLink is an extracted vehicle-detail-page URL found on a listing
// page, before the page itself has been fetched.
type VDPLink struct {
	URL string
}

// Extractor turns a fetched page into VDP links (on a listing page) or
// a Vehicle record (on a VDP), using per-source selectors. Kept separate
// from Provider so the same extraction rules apply regardless of which
// provider in the chain produced the HTML.
type Extractor interface {
	ExtractVDPLinks(html string) ([]VDPLink, error)
	ExtractVehicle(html string) (ScrapedVehicle, error)
}

// ScrapedVehicle is the raw field set lifted off a VDP, before
// smart-merge validates and applies it onto a stored domain.Vehicle.
type ScrapedVehicle struct {
	VIN          string
	Year         int
	Make         string
	Model        string
	Trim         string
	Type         string
	Price        float64
	Odometer     int
	StockNumber  string
	Images       []string
	CarfaxURL    string
	DealerVdpURL string
}
