package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/conversation"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/inventory"
	"github.com/ayubfarah/dealer-ops-core/internal/middleware"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
	"github.com/ayubfarah/dealer-ops-core/internal/tenant"
)

// WebhookHandler terminates the unauthenticated inbound integrations of
// spec.md §6.1: the CRM's lead-conversation webhooks, the DMS (PBS)
// lead-message relay, and the manual scrape trigger. Every route here is
// HMAC-verified rather than tenant.Resolver-gated, since the caller is
// a third-party system, not a logged-in user or browser extension.
type WebhookHandler struct {
	stores *store.Stores
	hub    *conversation.Hub
	runner *inventory.Runner
	clock  clock.Clock
	logger *slog.Logger
}

func NewWebhookHandler(stores *store.Stores, hub *conversation.Hub, runner *inventory.Runner, clk clock.Clock, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{stores: stores, hub: hub, runner: runner, clock: clk, logger: logger}
}

func (h *WebhookHandler) verify(r *http.Request, body []byte, dealership domain.Dealership) error {
	settings, err := h.stores.Settings.Get(r.Context(), dealership.ID)
	if err != nil {
		return apperr.Internal("webhooks.verify.settings", err)
	}
	return tenant.VerifyWebhookSignature(h.clock, settings.ScrapeWebhookSecret,
		r.Header.Get("X-Webhook-Timestamp"), r.Header.Get("X-Webhook-Signature"), body)
}

type triggerScrapeRequest struct {
	DealershipID int64    `json:"dealershipId"`
	SourceURLs   []string `json:"sourceUrls"`
}

// TriggerScrape is POST /webhooks/trigger-scrape.
func (h *WebhookHandler) TriggerScrape(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, apperr.Input("could not read request body"))
		return
	}

	var req triggerScrapeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}

	dealership, err := h.stores.Dealerships.GetByID(r.Context(), req.DealershipID)
	if err != nil {
		writeError(w, apperr.NotFound("dealership not found"))
		return
	}
	if err := h.verify(r, body, dealership); err != nil {
		writeError(w, err)
		return
	}

	sourceURLs := req.SourceURLs
	if len(sourceURLs) == 0 {
		settings, err := h.stores.Settings.Get(r.Context(), dealership.ID)
		if err != nil {
			writeError(w, apperr.Internal("webhooks.TriggerScrape.settings", err))
			return
		}
		sourceURLs = settings.ScraperSourceURLs
	}

	run, err := h.runner.Run(r.Context(), dealership.ID, sourceURLs, domain.TriggerWebhook)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type ghlWebhookRequest struct {
	LocationID        string `json:"locationId"`
	Type              string `json:"type"`
	ContactID         string `json:"contactId"`
	MessageID         string `json:"messageId"`
	Body              string `json:"body"`
	SenderName        string `json:"senderName"`
	Direction         string `json:"direction"`
	ExternalMessageID string `json:"externalMessageId"`
}

// GHLWebhook handles both /webhooks/ghl and /webhooks/ghl/call: the CRM
// conveys which dealership a lead belongs to via locationId rather than
// subdomain/JWT, so the dealership is resolved through
// conversation.Hub.ResolveDealershipByCRMLocation before HMAC
// verification runs.
func (h *WebhookHandler) GHLWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, apperr.Input("could not read request body"))
		return
	}

	var req ghlWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}
	if req.LocationID == "" {
		writeError(w, apperr.Input("locationId is required"))
		return
	}

	dealership, found, err := h.hub.ResolveDealershipByCRMLocation(r.Context(), req.LocationID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeError(w, apperr.NotFound("no dealership linked to this CRM location"))
		return
	}
	if err := h.verify(r, body, dealership); err != nil {
		writeError(w, err)
		return
	}

	ev := conversation.InboundEvent{
		Channel:           conversation.NormalizeChannel(req.Type),
		LocationOrPageID:  req.LocationID,
		ParticipantID:     req.ContactID,
		ExternalMessageID: req.ExternalMessageID,
		GHLMessageID:      req.MessageID,
		Body:              req.Body,
		SenderName:        req.SenderName,
		Direction:         domain.MessageDirection(req.Direction),
		Timestamp:         h.clock.Now(),
	}

	msg, err := h.hub.HandleInbound(r.Context(), dealership, ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

type pbsWebhookRequest struct {
	DealershipID  int64  `json:"dealershipId"`
	ParticipantID string `json:"participantId"`
	Body          string `json:"body"`
	SenderName    string `json:"senderName"`
}

// PBSWebhook relays a lead message surfaced by the dealership's DMS
// (lotview sync source) through the same dedup/persist/react path as
// every other inbound channel.
func (h *WebhookHandler) PBSWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, apperr.Input("could not read request body"))
		return
	}

	var req pbsWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}

	dealership, err := h.stores.Dealerships.GetByID(r.Context(), req.DealershipID)
	if err != nil {
		writeError(w, apperr.NotFound("dealership not found"))
		return
	}
	if err := h.verify(r, body, dealership); err != nil {
		writeError(w, err)
		return
	}

	ev := conversation.InboundEvent{
		Channel:       domain.ChannelSMS,
		ParticipantID: req.ParticipantID,
		Body:          req.Body,
		SenderName:    req.SenderName,
		Direction:     domain.DirectionInbound,
		Timestamp:     h.clock.Now(),
		SyncSource:    domain.SyncSourceLotview,
	}

	msg, err := h.hub.HandleInbound(r.Context(), dealership, ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
