package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/conversation"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/middleware"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

// ConversationHandler is the staff-facing side of spec.md §4.3: listing
// threads, reading messages and sending outbound replies. Inbound
// webhook delivery lives in webhooks.go, which calls conversation.Hub
// directly.
type ConversationHandler struct {
	stores   *store.Stores
	outbound *conversation.Outbound
	logger   *slog.Logger
}

func NewConversationHandler(stores *store.Stores, outbound *conversation.Outbound, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{stores: stores, outbound: outbound, logger: logger}
}

func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	channel := domain.Channel(r.URL.Query().Get("channel"))
	result, err := h.stores.Conversations.List(r.Context(), dealership.ID, channel, parsePage(r))
	if err != nil {
		writeError(w, apperr.Internal("conversations.List", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result.Items, "total": result.Total})
}

func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperr.Input("invalid conversation id"))
		return
	}

	conv, err := h.stores.Conversations.Get(r.Context(), id, dealership.ID)
	if store.IsNotFound(err) {
		writeError(w, apperr.NotFound("conversation not found"))
		return
	}
	if err != nil {
		writeError(w, apperr.Internal("conversations.Get", err))
		return
	}

	messages, err := h.stores.Messages.RecentByConversation(r.Context(), id, dealership.ID, 200)
	if err != nil {
		writeError(w, apperr.Internal("conversations.GetConversation.messages", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversation": conv, "messages": messages})
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

// SendMessage is the staff outbound-reply endpoint — it always routes
// through conversation.Outbound.Send so CRM delivery and fallback
// are exercised the same way for every channel.
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	user := middleware.UserFromContext(r.Context())
	if dealership == nil || user == nil {
		writeError(w, apperr.Auth("authentication required"))
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperr.Input("invalid conversation id"))
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}
	if req.Body == "" {
		writeError(w, apperr.InputField("body", "body is required"))
		return
	}

	msg, err := h.outbound.Send(r.Context(), dealership.ID, user.ID, id, req.Body, user.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

type setAIRequest struct {
	Enabled   bool `json:"enabled"`
	WatchMode bool `json:"watchMode"`
}

func (h *ConversationHandler) SetAI(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperr.Input("invalid conversation id"))
		return
	}

	var req setAIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}

	if err := h.stores.Conversations.SetAI(r.Context(), id, dealership.ID, req.Enabled, req.WatchMode); err != nil {
		writeError(w, apperr.Internal("conversations.SetAI", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

type updateMetadataRequest struct {
	LeadStatus    string   `json:"leadStatus"`
	PipelineStage string   `json:"pipelineStage"`
	Tags          []string `json:"tags"`
}

func (h *ConversationHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperr.Input("invalid conversation id"))
		return
	}

	var req updateMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}

	if err := h.stores.Conversations.UpdateMetadata(r.Context(), id, dealership.ID, req.LeadStatus, req.PipelineStage, req.Tags); err != nil {
		writeError(w, apperr.Internal("conversations.UpdateMetadata", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}
