package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/middleware"
	"github.com/ayubfarah/dealer-ops-core/internal/posting"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

// PostingHandler implements the `/extension/*` surface of spec.md §6.1:
// the browser extension's view of inventory, its daily rate limit, and
// the one-time-token mint/report-back cycle that gates every publish.
type PostingHandler struct {
	stores *store.Stores
	tokens *posting.TokenIssuer
	clock  clock.Clock
	logger *slog.Logger
}

func NewPostingHandler(stores *store.Stores, tokens *posting.TokenIssuer, clk clock.Clock, logger *slog.Logger) *PostingHandler {
	return &PostingHandler{stores: stores, tokens: tokens, clock: clk, logger: logger}
}

// Inventory is GET /extension/inventory — the extension's read of the
// dealership's active vehicles, so it knows what it's offering to post.
func (h *PostingHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	result, err := h.stores.Vehicles.List(r.Context(), dealership.ID, store.VehicleFilter{}, parsePage(r))
	if err != nil {
		writeError(w, apperr.Internal("extension.Inventory", err))
		return
	}
	items := make([]map[string]any, 0, len(result.Items))
	for _, v := range result.Items {
		items = append(items, vehiclePayload(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": result.Total})
}

// Limits is GET /extension/limits.
func (h *PostingHandler) Limits(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	user := middleware.UserFromContext(r.Context())
	if dealership == nil || user == nil {
		writeError(w, apperr.Auth("authentication required"))
		return
	}

	settings, err := h.stores.Settings.Get(r.Context(), dealership.ID)
	if err != nil {
		writeError(w, apperr.Internal("extension.Limits.settings", err))
		return
	}
	used, err := h.stores.PostingTokens.CountSuccessfulToday(r.Context(), dealership.ID, user.ID, h.clock.Now())
	if err != nil {
		writeError(w, apperr.Internal("extension.Limits.count", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dailyCap": settings.PostingDailyCap, "usedToday": used})
}

type mintPostingTokenRequest struct {
	VehicleID int64  `json:"vehicleId"`
	Platform  string `json:"platform"`
}

// PostingToken is POST /extension/posting-token: re-checks the daily
// cap, verifies the vehicle belongs to the dealership, and mints a
// single-use token bound to (userId, vehicleId, platform) (spec.md
// §4.5).
func (h *PostingHandler) PostingToken(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	user := middleware.UserFromContext(r.Context())
	if dealership == nil || user == nil {
		writeError(w, apperr.Auth("authentication required"))
		return
	}

	var req mintPostingTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}
	if req.Platform == "" {
		writeError(w, apperr.InputField("platform", "platform is required"))
		return
	}

	tok, err := h.tokens.Mint(r.Context(), dealership.ID, user.ID, req.VehicleID, req.Platform)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tok)
}

type enqueuePostRequest struct {
	VehicleID  int64  `json:"vehicleId"`
	AccountID  string `json:"accountId"`
	TemplateID string `json:"templateId"`
	Priority   int    `json:"priority"`
}

// Postings is POST /extension/postings — enqueues a PostingQueueItem
// for the worker-pool engine (internal/posting.Processor) to pick up,
// for vehicles posted via the scheduled/automated path rather than a
// one-off extension-driven publish.
func (h *PostingHandler) Postings(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	user := middleware.UserFromContext(r.Context())
	if dealership == nil || user == nil {
		writeError(w, apperr.Auth("authentication required"))
		return
	}

	var req enqueuePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}
	if _, err := h.stores.Vehicles.Get(r.Context(), req.VehicleID, dealership.ID); err != nil {
		writeError(w, apperr.NotFound("vehicle not found for this dealership"))
		return
	}

	item, err := h.stores.Postings.Enqueue(r.Context(), domain.PostingQueueItem{
		DealershipID: dealership.ID,
		UserID:       user.ID,
		VehicleID:    req.VehicleID,
		AccountID:    req.AccountID,
		TemplateID:   req.TemplateID,
		Status:       domain.PostingQueued,
		Priority:     req.Priority,
	})
	if err != nil {
		writeError(w, apperr.Internal("extension.Postings", err))
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type autoPostRequest struct {
	Token             string `json:"token"`
	Platform          string `json:"platform"`
	AccountID         string `json:"accountId"`
	Success           bool   `json:"success"`
	ExternalListingID string `json:"externalListingId"`
	Error             string `json:"error"`
}

// AutoPost is POST /extension/auto-post, the report-back leg: on
// success it consumes the one-time token and upserts the listing row;
// on failure it only checks the token (Peek) and leaves it unconsumed
// until its own TTL expiry (spec.md §4.5).
func (h *PostingHandler) AutoPost(w http.ResponseWriter, r *http.Request) {
	var req autoPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}

	if !req.Success {
		if _, err := h.tokens.Peek(r.Context(), req.Token); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"recorded": true, "success": false, "error": req.Error})
		return
	}

	tok, err := h.tokens.Consume(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	listing, err := h.stores.Listings.Upsert(r.Context(), domain.Listing{
		DealershipID:      tok.DealershipID,
		VehicleID:         tok.VehicleID,
		AccountID:         req.AccountID,
		Platform:          tok.Platform,
		ExternalListingID: req.ExternalListingID,
		Status:            domain.ListingPosted,
		PostedAt:          h.clock.Now(),
	})
	if err != nil {
		writeError(w, apperr.Internal("extension.AutoPost.upsert", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recorded": true, "success": true, "listing": listing})
}
