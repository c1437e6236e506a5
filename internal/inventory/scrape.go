package inventory

import (
	"context"
	"time"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

const maxRetriesPerRun = 3

// Notifier pushes a completion event to the realtime fanout once a scrape
// run finishes, successfully or not.
type Notifier interface {
	NotifyScrapeComplete(dealershipID int64, run domain.ScrapeRun)
}

// Runner drives the provider fallback chain for one dealership's scrape
// run (spec.md §4.4): providers are tried in order until one succeeds or
// the retry budget (3 total, across providers) is exhausted.
type Runner struct {
	stores    *store.Stores
	clock     clock.Clock
	providers []Provider
	extractor Extractor
	fetcher   ImageFetcher
	blob      BlobStore
	notifier  Notifier
}

func NewRunner(stores *store.Stores, clk clock.Clock, providers []Provider, extractor Extractor, fetcher ImageFetcher, blob BlobStore, notifier Notifier) *Runner {
	return &Runner{stores: stores, clock: clk, providers: providers, extractor: extractor, fetcher: fetcher, blob: blob, notifier: notifier}
}

// Run scrapes every VDP reachable from sourceURLs for one dealership,
// upserting vehicles by VIN and recording a ScrapeRun.
func (r *Runner) Run(ctx context.Context, dealershipID int64, sourceURLs []string, trigger domain.ScrapeTrigger) (domain.ScrapeRun, error) {
	run, err := r.stores.ScrapeRuns.Start(ctx, domain.ScrapeRun{
		DealershipID: dealershipID,
		TriggeredBy:  trigger,
		StartedAt:    r.clock.Now(),
	})
	if err != nil {
		return domain.ScrapeRun{}, apperr.Internal("inventory.Run.start", err)
	}

	retries := 0
	var lastErr error

	for _, sourceURL := range sourceURLs {
		html, method, err := r.fetchWithFallback(ctx, sourceURL, &retries)
		if err != nil {
			lastErr = err
			continue
		}
		run.Method = method

		links, err := r.extractor.ExtractVDPLinks(html)
		if err != nil {
			lastErr = err
			continue
		}
		run.VehiclesFound += len(links)

		for _, link := range links {
			vdpHTML, _, err := r.fetchWithFallback(ctx, link.URL, &retries)
			if err != nil {
				lastErr = err
				continue
			}
			scraped, err := r.extractor.ExtractVehicle(vdpHTML)
			if err != nil {
				lastErr = err
				continue
			}
			if !isValidVIN(scraped.VIN) {
				continue
			}

			if err := r.upsert(ctx, dealershipID, scraped, &run); err != nil {
				lastErr = err
			}
		}
	}

	run.RetryCount = retries
	endedAt := r.clock.Now()
	run.EndedAt = &endedAt
	if lastErr != nil && run.VehiclesFound == 0 {
		run.Error = lastErr.Error()
	}

	if err := r.stores.ScrapeRuns.Finish(ctx, run.ID, run); err != nil {
		return run, apperr.Internal("inventory.Run.finish", err)
	}

	if r.notifier != nil {
		r.notifier.NotifyScrapeComplete(dealershipID, run)
	}

	return run, nil
}

// fetchWithFallback tries each provider in order, counting every
// failed attempt against the run's shared retry budget.
func (r *Runner) fetchWithFallback(ctx context.Context, url string, retries *int) (string, string, error) {
	var lastErr error
	for _, p := range r.providers {
		if *retries >= maxRetriesPerRun {
			break
		}
		result, err := p.Fetch(ctx, url)
		if err == nil {
			return result.HTML, p.Name(), nil
		}
		*retries++
		lastErr = err
	}
	if lastErr == nil {
		lastErr = apperr.Upstream("retry budget exhausted", nil)
	}
	return "", "", lastErr
}

func (r *Runner) upsert(ctx context.Context, dealershipID int64, scraped ScrapedVehicle, run *domain.ScrapeRun) error {
	existing, err := r.stores.Vehicles.GetByVIN(ctx, scraped.VIN, dealershipID)
	if store.IsNotFound(err) {
		v := MergeScraped(domain.Vehicle{DealershipID: dealershipID}, scraped)
		v.LastScrapedAt = timePtr(r.clock.Now())
		created, err := r.stores.Vehicles.Create(ctx, v)
		if err != nil {
			return err
		}
		created.Images = PersistImages(ctx, r.fetcher, r.blob, dealershipID, created.ID, created.Images)
		if err := r.stores.Vehicles.Update(ctx, created); err != nil {
			return err
		}
		run.VehiclesInserted++
		return nil
	}
	if err != nil {
		return err
	}

	merged := MergeScraped(existing, scraped)
	merged.LastScrapedAt = timePtr(r.clock.Now())
	merged.Images = PersistImages(ctx, r.fetcher, r.blob, dealershipID, existing.ID, merged.Images)
	if err := r.stores.Vehicles.Update(ctx, merged); err != nil {
		return err
	}
	run.VehiclesUpdated++
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }
