package conversation

import (
	"context"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

// CRMAdapter is C7's CRM surface, as consumed by the hub. The real
// implementation lives in internal/adapters and wraps an HTTP client
// plus internal/adapters.Call for retry/backoff and ApiLog bookkeeping.
type CRMAdapter interface {
	FindOrCreateContact(ctx context.Context, dealership domain.Dealership, phone, email, name string) (contactID string, err error)
	ObtainConversation(ctx context.Context, dealership domain.Dealership, contactID string, channel domain.Channel) (crmConversationID string, err error)
	SendMessage(ctx context.Context, dealership domain.Dealership, crmConversationID, body string) (externalMessageID string, err error)
}

// FallbackSink is the generic summary webhook used when the primary
// CRM send path fails (spec.md §4.3 outbound, final bullet).
type FallbackSink interface {
	SendSummary(ctx context.Context, dealership domain.Dealership, conv domain.Conversation, body string) error
}

type Outbound struct {
	stores   *store.Stores
	clock    clock.Clock
	crm      CRMAdapter
	fallback FallbackSink
}

func NewOutbound(stores *store.Stores, clk clock.Clock, crm CRMAdapter, fallback FallbackSink) *Outbound {
	return &Outbound{stores: stores, clock: clk, crm: crm, fallback: fallback}
}

// Send implements the outbound path: find-or-create CRM contact,
// obtain/create the CRM conversation, send, then persist the outbound
// Message before the CRM echo can arrive — storing ghlMessageId
// immediately dedupes that echo on arrival.
func (o *Outbound) Send(ctx context.Context, dealershipID, userID, conversationID int64, body string, senderName string) (domain.Message, error) {
	conv, err := o.stores.Conversations.Get(ctx, conversationID, dealershipID)
	if err != nil {
		return domain.Message{}, apperr.NotFound("conversation not found")
	}
	dealership, err := o.stores.Dealerships.GetByID(ctx, dealershipID)
	if err != nil {
		return domain.Message{}, apperr.Internal("outbound.Send.dealership", err)
	}

	if conv.GHLContactID == "" {
		contactID, err := o.crm.FindOrCreateContact(ctx, dealership, conv.HandoffPhone, conv.HandoffEmail, conv.HandoffName)
		if err != nil {
			return domain.Message{}, apperr.Upstream("crm contact lookup failed", err)
		}
		if err := o.stores.Conversations.SetGHLContactID(ctx, conv.ID, contactID); err != nil {
			return domain.Message{}, apperr.Internal("outbound.Send.setContact", err)
		}
		conv.GHLContactID = contactID
	}

	crmConvID, err := o.crm.ObtainConversation(ctx, dealership, conv.GHLContactID, conv.Channel)
	sentAt := o.clock.Now()

	var externalID string
	var sendErr error
	if err == nil {
		externalID, sendErr = o.crm.SendMessage(ctx, dealership, crmConvID, body)
	} else {
		sendErr = err
	}

	if sendErr != nil && o.fallback != nil {
		if fbErr := o.fallback.SendSummary(ctx, dealership, conv, body); fbErr != nil {
			return domain.Message{}, apperr.Upstream("both crm send and fallback sink failed", fbErr)
		}
	} else if sendErr != nil {
		return domain.Message{}, apperr.Upstream("crm send failed", sendErr)
	}

	msg, insErr := o.stores.Messages.Insert(ctx, domain.Message{
		DealershipID:      dealershipID,
		ConversationID:    conv.ID,
		ExternalMessageID: externalID,
		GHLMessageID:      externalID,
		Direction:         domain.DirectionOutbound,
		SenderName:        senderName,
		Content:           body,
		IsRead:            true,
		SentAt:            sentAt,
		SyncSource:        domain.SyncSourceCRM,
	})
	if insErr != nil {
		return domain.Message{}, apperr.Internal("outbound.Send.insert", insErr)
	}

	if err := o.stores.Conversations.UpdateLastMessage(ctx, conv.ID, body, sentAt); err != nil {
		return msg, apperr.Internal("outbound.Send.updateLastMessage", err)
	}
	// Marked handed-off regardless of which path (primary or fallback)
	// succeeded, per spec.md §4.3.
	_ = o.stores.Conversations.UpdateMetadata(ctx, conv.ID, dealershipID, "", "handed_off", nil)

	return msg, nil
}
