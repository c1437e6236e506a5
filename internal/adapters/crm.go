package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

const crmTimeout = 10 * time.Second

// CRM is the GoHighLevel-backed implementation of conversation.CRMAdapter.
// Every call goes through Call for timeout/retry/ApiLog bookkeeping.
type CRM struct {
	client  *http.Client
	baseURL string
	logs    store.ApiLogStore
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewCRM(baseURL string, logs store.ApiLogStore, logger *slog.Logger) *CRM {
	return &CRM{
		client:  &http.Client{Timeout: crmTimeout},
		baseURL: baseURL,
		logs:    logs,
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		logger:  logger,
	}
}

type crmContactResponse struct {
	Contact struct {
		ID string `json:"id"`
	} `json:"contact"`
}

// FindOrCreateContact implements conversation.CRMAdapter.
func (c *CRM) FindOrCreateContact(ctx context.Context, dealership domain.Dealership, phone, email, name string) (string, error) {
	result := Call(ctx, c.logs, c.limiter, c.logger, &dealership.ID, "crm",
		fmt.Sprintf("find_or_create_contact dealership=%d", dealership.ID), crmTimeout,
		func(ctx context.Context) (string, int, error) {
			body, _ := json.Marshal(map[string]string{
				"locationId": dealership.Slug,
				"phone":      phone,
				"email":      email,
				"name":       name,
			})
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/contacts/upsert", bytes.NewReader(body))
			if err != nil {
				return "", 0, err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.client.Do(req)
			if err != nil {
				return "", 0, err
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return "", resp.StatusCode, err
			}
			if resp.StatusCode >= 300 {
				return "", resp.StatusCode, fmt.Errorf("crm upsert contact: status %d", resp.StatusCode)
			}

			var parsed crmContactResponse
			if err := json.Unmarshal(raw, &parsed); err != nil {
				return "", resp.StatusCode, err
			}
			return parsed.Contact.ID, resp.StatusCode, nil
		})
	if result.Err != nil {
		return "", apperr.Upstream("crm contact lookup failed", result.Err)
	}
	return result.Data, nil
}

type crmConversationResponse struct {
	Conversation struct {
		ID string `json:"id"`
	} `json:"conversation"`
}

// ObtainConversation implements conversation.CRMAdapter.
func (c *CRM) ObtainConversation(ctx context.Context, dealership domain.Dealership, contactID string, channel domain.Channel) (string, error) {
	result := Call(ctx, c.logs, c.limiter, c.logger, &dealership.ID, "crm",
		fmt.Sprintf("obtain_conversation contact=%s channel=%s", contactID, channel), crmTimeout,
		func(ctx context.Context) (string, int, error) {
			body, _ := json.Marshal(map[string]string{
				"contactId": contactID,
				"locationId": dealership.Slug,
			})
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/conversations", bytes.NewReader(body))
			if err != nil {
				return "", 0, err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.client.Do(req)
			if err != nil {
				return "", 0, err
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return "", resp.StatusCode, err
			}
			if resp.StatusCode >= 300 {
				return "", resp.StatusCode, fmt.Errorf("crm obtain conversation: status %d", resp.StatusCode)
			}

			var parsed crmConversationResponse
			if err := json.Unmarshal(raw, &parsed); err != nil {
				return "", resp.StatusCode, err
			}
			return parsed.Conversation.ID, resp.StatusCode, nil
		})
	if result.Err != nil {
		return "", apperr.Upstream("crm conversation lookup failed", result.Err)
	}
	return result.Data, nil
}

type crmMessageResponse struct {
	MessageID string `json:"messageId"`
}

// SendMessage implements conversation.CRMAdapter.
func (c *CRM) SendMessage(ctx context.Context, dealership domain.Dealership, crmConversationID, body string) (string, error) {
	result := Call(ctx, c.logs, c.limiter, c.logger, &dealership.ID, "crm",
		fmt.Sprintf("send_message conversation=%s", crmConversationID), crmTimeout,
		func(ctx context.Context) (string, int, error) {
			payload, _ := json.Marshal(map[string]string{
				"conversationId": crmConversationID,
				"message":        body,
			})
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/conversations/messages", bytes.NewReader(payload))
			if err != nil {
				return "", 0, err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.client.Do(req)
			if err != nil {
				return "", 0, err
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return "", resp.StatusCode, err
			}
			if resp.StatusCode >= 300 {
				return "", resp.StatusCode, fmt.Errorf("crm send message: status %d", resp.StatusCode)
			}

			var parsed crmMessageResponse
			if err := json.Unmarshal(raw, &parsed); err != nil {
				return "", resp.StatusCode, err
			}
			return parsed.MessageID, resp.StatusCode, nil
		})
	if result.Err != nil {
		return "", apperr.Upstream("crm send message failed", result.Err)
	}
	return result.Data, nil
}
