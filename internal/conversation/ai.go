package conversation

import (
	"context"
	"strings"

	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

// AITurn is one line of conversation history handed to the model.
type AITurn struct {
	SenderName string
	Body       string
	Direction  domain.MessageDirection
}

// AIAdapter is C7's model surface. The real implementation lives in
// internal/adapters and wraps an HTTP client plus internal/adapters.Call
// for retry/backoff and ApiLog bookkeeping.
type AIAdapter interface {
	Reply(ctx context.Context, prompt string, history []AITurn, temperature float64, maxTokens int, model string) (string, error)
}

const historyDepth = 20

// AIReplier drafts the dealership's automated reply to an inbound
// conversation and stores it as an outbound Message (spec.md §4.3.2).
// It does not send the reply through the CRM.
type AIReplier struct {
	stores *store.Stores
	clock  clock.Clock
	model  AIAdapter
}

func NewAIReplier(stores *store.Stores, clk clock.Clock, model AIAdapter) *AIReplier {
	return &AIReplier{stores: stores, clock: clk, model: model}
}

// MaybeReply drafts a reply from conversation history and vehicle
// context and persists it as an outbound Message. It is a no-op when
// the conversation's aiWatchMode is on — the dealership wants a human
// to see the draft before anything goes out, so nothing is sent.
func (a *AIReplier) MaybeReply(ctx context.Context, dealership domain.Dealership, conv domain.Conversation) {
	if conv.AIWatchMode {
		return
	}

	settings, err := a.stores.Settings.Get(ctx, dealership.ID)
	if err != nil {
		return
	}

	recent, err := a.stores.Messages.RecentByConversation(ctx, conv.ID, dealership.ID, historyDepth)
	if err != nil {
		return
	}

	history := make([]AITurn, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		history = append(history, AITurn{SenderName: m.SenderName, Body: m.Content, Direction: m.Direction})
	}

	prompt := promptFor(dealership, conv)

	reply, err := a.model.Reply(ctx, prompt, history, settings.AITemperature, settings.AIMaxTokens, settings.AIModel)
	if err != nil || reply == "" {
		return
	}
	reply = capLength(reply, settings.AIReplyLengthCap)

	msg, err := a.stores.Messages.Insert(ctx, domain.Message{
		DealershipID:   dealership.ID,
		ConversationID: conv.ID,
		Direction:      domain.DirectionOutbound,
		SenderName:     "AI Assistant",
		Content:        reply,
		IsRead:         true,
		SentAt:         a.clock.Now(),
		SyncSource:     domain.SyncSourceLotview,
	})
	if err != nil {
		return
	}
	_ = a.stores.Conversations.UpdateLastMessage(ctx, conv.ID, msg.Content, msg.SentAt)
}

func promptFor(dealership domain.Dealership, conv domain.Conversation) string {
	var b strings.Builder
	b.WriteString("You are a sales assistant for ")
	b.WriteString(dealership.DisplayName)
	b.WriteString(". Reply to the customer's most recent message on the ")
	b.WriteString(string(conv.Channel))
	b.WriteString(" channel. Be concise and do not invent vehicle details you have not been given.")
	return b.String()
}

func capLength(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit]
}
