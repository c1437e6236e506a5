// Package conversation implements the inbound/outbound messaging hub:
// dedup first, persist second, react third (spec.md §4.3).
package conversation

import (
	"context"
	"time"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

// InboundEvent is the normalized shape of a provider webhook payload,
// after the handler layer has coerced a numeric or string `type` into
// a canonical Channel.
type InboundEvent struct {
	Channel           domain.Channel
	LocationOrPageID  string
	ParticipantID     string
	ExternalMessageID string
	GHLMessageID      string
	Body              string
	SenderName        string
	Direction         domain.MessageDirection
	Timestamp         time.Time
	// SyncSource defaults to domain.SyncSourceProvider when unset; the
	// PBS/lotview webhook path sets it explicitly.
	SyncSource domain.SyncSource
}

// NormalizeChannel maps the provider's numeric or string `type` field
// to a canonical Channel (spec.md §4.3: "type may be numeric (1=email,
// 2=SMS, 3=call) or string").
func NormalizeChannel(raw string) domain.Channel {
	switch raw {
	case "1", "email":
		return domain.ChannelEmail
	case "2", "sms", "SMS":
		return domain.ChannelSMS
	case "3", "call", "messenger":
		return domain.ChannelMessenger
	default:
		return domain.Channel(raw)
	}
}

type Hub struct {
	stores *store.Stores
	clock  clock.Clock
	miner  *Miner
	ai     *AIReplier
}

func NewHub(stores *store.Stores, clk clock.Clock, miner *Miner, ai *AIReplier) *Hub {
	return &Hub{stores: stores, clock: clk, miner: miner, ai: ai}
}

// ResolveDealershipByCRMLocation is the first of the two webhook
// lookup tables the spec names: CRM-linked accounts.
func (h *Hub) ResolveDealershipByCRMLocation(ctx context.Context, locationID string) (domain.Dealership, bool, error) {
	settings, err := h.stores.Settings.FindByCRMLocationID(ctx, locationID)
	if store.IsNotFound(err) {
		return domain.Dealership{}, false, nil
	}
	if err != nil {
		return domain.Dealership{}, false, apperr.Internal("hub.ResolveDealershipByCRMLocation", err)
	}
	d, err := h.stores.Dealerships.GetByID(ctx, settings.DealershipID)
	if err != nil {
		return domain.Dealership{}, false, apperr.Internal("hub.ResolveDealershipByCRMLocation.dealership", err)
	}
	return d, true, nil
}

// HandleInbound runs dedup, persist, react in that order. dealership
// must already be resolved by the caller (via CRM location lookup or
// a tenant-scoped webhook route).
func (h *Hub) HandleInbound(ctx context.Context, dealership domain.Dealership, ev InboundEvent) (domain.Message, error) {
	if ev.ExternalMessageID != "" || ev.GHLMessageID != "" {
		if existing, dup, err := h.stores.Messages.FindDuplicate(ctx, dealership.ID, ev.ExternalMessageID, ev.GHLMessageID); err != nil {
			return domain.Message{}, apperr.Internal("hub.HandleInbound.dedup", err)
		} else if dup {
			return existing, nil
		}
	}

	conv, _, err := h.stores.Conversations.GetOrCreate(ctx, dealership.ID, ev.Channel, ev.ParticipantID)
	if err != nil {
		return domain.Message{}, apperr.Internal("hub.HandleInbound.conversation", err)
	}

	sentAt := ev.Timestamp
	if sentAt.IsZero() {
		sentAt = h.clock.Now()
	}

	syncSource := ev.SyncSource
	if syncSource == "" {
		syncSource = domain.SyncSourceProvider
	}
	msg, err := h.stores.Messages.Insert(ctx, domain.Message{
		DealershipID:      dealership.ID,
		ConversationID:    conv.ID,
		ExternalMessageID: ev.ExternalMessageID,
		GHLMessageID:      ev.GHLMessageID,
		Direction:         domain.DirectionInbound,
		SenderName:        ev.SenderName,
		Content:           ev.Body,
		SentAt:            sentAt,
		SyncSource:        syncSource,
	})
	if store.IsAlreadyExists(err) {
		// Lost the race against a concurrent identical delivery;
		// another goroutine already persisted and will react.
		return msg, nil
	}
	if err != nil {
		return domain.Message{}, apperr.Internal("hub.HandleInbound.insert", err)
	}

	if err := h.stores.Conversations.UpdateLastMessage(ctx, conv.ID, ev.Body, sentAt); err != nil {
		return msg, apperr.Internal("hub.HandleInbound.updateLastMessage", err)
	}

	if h.miner != nil && (conv.HandoffName == "" || conv.HandoffPhone == "" || conv.HandoffEmail == "") {
		if name, phone, email, found := h.mineHandoff(ctx, conv); found {
			_ = h.stores.Conversations.UpdateHandoff(ctx, conv.ID, name, phone, email)
		}
	}

	if h.ai != nil && conv.AIEnabled {
		go h.ai.MaybeReply(context.WithoutCancel(ctx), dealership, conv)
	}

	return msg, nil
}

// mineHandoff scans the conversation's customer-authored messages
// newest-first, stopping once every missing field has been found
// (spec.md §4.3.1). Fields already present on conv are never
// re-mined or overwritten — UpdateHandoff itself guards that too.
func (h *Hub) mineHandoff(ctx context.Context, conv domain.Conversation) (name, phone, email string, found bool) {
	messages, err := h.stores.Messages.RecentInbound(ctx, conv.ID, conv.DealershipID, 0)
	if err != nil {
		return "", "", "", false
	}

	needName, needPhone, needEmail := conv.HandoffName == "", conv.HandoffPhone == "", conv.HandoffEmail == ""
	for _, m := range messages {
		n, p, e, ok := h.miner.Mine(m.Content)
		if !ok {
			continue
		}
		if needName && n != "" && name == "" {
			name = n
		}
		if needPhone && p != "" && phone == "" {
			phone = p
		}
		if needEmail && e != "" && email == "" {
			email = e
		}
		if (!needName || name != "") && (!needPhone || phone != "") && (!needEmail || email != "") {
			break
		}
	}
	return name, phone, email, name != "" || phone != "" || email != ""
}
