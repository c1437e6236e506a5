// Package posting implements the posting-queue engine (C5): a
// per-dealership worker pool claiming PostingQueueItems and driving
// them through a browser-automation adapter, adapted from the
// teacher's per-auction bid-processing engine.
package posting

import (
	"context"
	"log/slog"

	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

// BrowserAutomation is C7's browser-delegation surface (spec.md §4.5):
// "accepts {vehicle, images, description, sessionCookies} and returns
// {success, listingUrl?, error?}".
type BrowserAutomation interface {
	Post(ctx context.Context, req PostRequest) (PostOutcome, error)
}

type PostRequest struct {
	Vehicle        domain.Vehicle
	Images         []string
	Description    string
	SessionCookies string
	Platform       string
	AccountID      string
}

type PostOutcome struct {
	Success    bool
	ListingURL string
	Error      string
}

// Notifier pushes a post_status event to the realtime fanout.
type Notifier interface {
	NotifyPostStatus(dealershipID int64, item domain.PostingQueueItem)
}

const maxAttempts = 3

type Processor struct {
	stores     *store.Stores
	clock      clock.Clock
	automation BrowserAutomation
	notifier   Notifier
	logger     *slog.Logger
}

func NewProcessor(stores *store.Stores, clk clock.Clock, automation BrowserAutomation, notifier Notifier, logger *slog.Logger) *Processor {
	return &Processor{stores: stores, clock: clk, automation: automation, notifier: notifier, logger: logger}
}

// Process drives one claimed item to completion: fetches the vehicle,
// prefers hosted localImages, calls the automation adapter, then
// records the outcome (spec.md §4.5).
func (p *Processor) Process(ctx context.Context, item domain.PostingQueueItem) {
	vehicle, err := p.stores.Vehicles.Get(ctx, item.VehicleID, item.DealershipID)
	if err != nil {
		p.fail(ctx, item, "vehicle not found: "+err.Error())
		return
	}

	images := vehicle.DisplayImages()
	description := vehicle.ManualDescription
	if description == "" {
		description = vehicle.SocialTemplates
	}

	outcome, err := p.automation.Post(ctx, PostRequest{
		Vehicle:     vehicle,
		Images:      images,
		Description: description,
		Platform:    vehicle.Type,
		AccountID:   item.AccountID,
	})
	if err != nil {
		p.fail(ctx, item, err.Error())
		return
	}
	if !outcome.Success {
		p.fail(ctx, item, outcome.Error)
		return
	}

	postedAt := p.clock.Now()
	if err := p.stores.Postings.MarkPosted(ctx, item.ID, outcome.ListingURL, postedAt); err != nil {
		p.logger.Error("posting_mark_posted_failed", slog.Int64("item_id", item.ID), slog.String("error", err.Error()))
	}

	if _, err := p.stores.Listings.Upsert(ctx, domain.Listing{
		DealershipID:      item.DealershipID,
		VehicleID:         item.VehicleID,
		AccountID:         item.AccountID,
		Platform:          vehicle.Type,
		ExternalListingID: outcome.ListingURL,
		Status:            domain.ListingPosted,
		PostedAt:          postedAt,
	}); err != nil {
		p.logger.Error("posting_listing_upsert_failed", slog.Int64("item_id", item.ID), slog.String("error", err.Error()))
	}

	vehicle.MarketplacePostedAt = &postedAt
	if err := p.stores.Vehicles.Update(ctx, vehicle); err != nil {
		p.logger.Error("posting_vehicle_update_failed", slog.Int64("vehicle_id", vehicle.ID), slog.String("error", err.Error()))
	}

	item.Status = domain.PostingPosted
	item.ExternalListingID = outcome.ListingURL
	item.PostedAt = &postedAt
	if p.notifier != nil {
		p.notifier.NotifyPostStatus(item.DealershipID, item)
	}
}

func (p *Processor) fail(ctx context.Context, item domain.PostingQueueItem, reason string) {
	if err := p.stores.Postings.IncrementAttempt(ctx, item.ID); err != nil {
		p.logger.Error("posting_increment_attempt_failed", slog.Int64("item_id", item.ID), slog.String("error", err.Error()))
	}

	status := domain.PostingQueued
	if item.AttemptCount+1 >= maxAttempts {
		status = domain.PostingFailed
	}
	if err := p.stores.Postings.MarkStatus(ctx, item.ID, status, reason); err != nil {
		p.logger.Error("posting_mark_status_failed", slog.Int64("item_id", item.ID), slog.String("error", err.Error()))
	}

	item.Status = status
	item.LastError = reason
	if p.notifier != nil {
		p.notifier.NotifyPostStatus(item.DealershipID, item)
	}
}
