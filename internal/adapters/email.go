package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

const emailTimeout = 10 * time.Second

// Email is the conversation.FallbackSink implementation used when the
// CRM send path fails: it emails a summary of the message that couldn't
// go out to the conversation's handoff email address (the contact mined
// from the customer's messages), rather than silently dropping it.
type Email struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	fromAddr string
	logs     store.ApiLogStore
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func NewEmail(baseURL, apiKey, fromAddr string, logs store.ApiLogStore, logger *slog.Logger) *Email {
	return &Email{
		client:   &http.Client{Timeout: emailTimeout},
		baseURL:  baseURL,
		apiKey:   apiKey,
		fromAddr: fromAddr,
		logs:     logs,
		limiter:  rate.NewLimiter(rate.Limit(5), 10),
		logger:   logger,
	}
}

type sendEmailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// SendSummary implements conversation.FallbackSink.
func (e *Email) SendSummary(ctx context.Context, dealership domain.Dealership, conv domain.Conversation, body string) error {
	to := conv.HandoffEmail
	if to == "" {
		return apperr.Input("conversation has no handoff email for fallback delivery")
	}

	result := Call(ctx, e.logs, e.limiter, e.logger, &dealership.ID, "email",
		fmt.Sprintf("send_summary conversation=%d", conv.ID), emailTimeout,
		func(ctx context.Context) (struct{}, int, error) {
			payload, err := json.Marshal(sendEmailRequest{
				From:    e.fromAddr,
				To:      to,
				Subject: fmt.Sprintf("[%s] Message could not be delivered", dealership.DisplayName),
				Text:    body,
			})
			if err != nil {
				return struct{}{}, 0, err
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/send", bytes.NewReader(payload))
			if err != nil {
				return struct{}{}, 0, err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+e.apiKey)

			resp, err := e.client.Do(req)
			if err != nil {
				return struct{}{}, 0, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				return struct{}{}, resp.StatusCode, fmt.Errorf("email send: status %d", resp.StatusCode)
			}
			return struct{}{}, resp.StatusCode, nil
		})
	if result.Err != nil {
		return apperr.Upstream("fallback email send failed", result.Err)
	}
	return nil
}
