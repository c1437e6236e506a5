package realtime

import (
	"time"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
)

// NotificationType enumerates the event kinds a dealership connection
// can receive (spec.md §4.6).
type NotificationType string

const (
	NotificationNewLead            NotificationType = "new_lead"
	NotificationChatMessage        NotificationType = "chat_message"
	NotificationPostStatus         NotificationType = "post_status"
	NotificationInventorySync      NotificationType = "inventory_sync"
	NotificationSystem             NotificationType = "system"
	NotificationNewMessage         NotificationType = "new_message"
	NotificationConversationUpdate NotificationType = "conversation_update"
)

func (t NotificationType) valid() bool {
	switch t {
	case NotificationNewLead, NotificationChatMessage, NotificationPostStatus,
		NotificationInventorySync, NotificationSystem, NotificationNewMessage, NotificationConversationUpdate:
		return true
	}
	return false
}

// Notification is the payload broadcast to every connection tagged
// with a dealershipId (spec.md §4.6).
type Notification struct {
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Data      interface{}      `json:"data,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Validate enforces the two broadcast-time invariants: type must be in
// the enum, dealershipId must be a positive integer.
func Validate(dealershipID int64, n Notification) error {
	if dealershipID <= 0 {
		return apperr.Input("dealershipId must be a positive integer")
	}
	if !n.Type.valid() {
		return apperr.Input("unknown notification type")
	}
	return nil
}
