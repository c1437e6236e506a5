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
	"github.com/ayubfarah/dealer-ops-core/internal/conversation"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

const aiTimeout = 30 * time.Second

// AIModel is the chat-completion-backed implementation of
// conversation.AIAdapter.
type AIModel struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logs    store.ApiLogStore
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewAIModel(baseURL, apiKey string, logs store.ApiLogStore, logger *slog.Logger) *AIModel {
	return &AIModel{
		client:  &http.Client{Timeout: aiTimeout},
		baseURL: baseURL,
		apiKey:  apiKey,
		logs:    logs,
		limiter: rate.NewLimiter(rate.Limit(2), 5),
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Reply implements conversation.AIAdapter.
func (m *AIModel) Reply(ctx context.Context, prompt string, history []conversation.AITurn, temperature float64, maxTokens int, model string) (string, error) {
	messages := make([]chatMessage, 0, len(history)+1)
	messages = append(messages, chatMessage{Role: "system", Content: prompt})
	for _, turn := range history {
		role := "user"
		if turn.Direction == "outbound" {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: turn.SenderName + ": " + turn.Body})
	}

	result := Call(ctx, m.logs, m.limiter, m.logger, nil, "ai",
		fmt.Sprintf("reply model=%s turns=%d", model, len(history)), aiTimeout,
		func(ctx context.Context) (string, int, error) {
			payload, err := json.Marshal(chatCompletionRequest{
				Model:       model,
				Messages:    messages,
				Temperature: temperature,
				MaxTokens:   maxTokens,
			})
			if err != nil {
				return "", 0, err
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/chat/completions", bytes.NewReader(payload))
			if err != nil {
				return "", 0, err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+m.apiKey)

			resp, err := m.client.Do(req)
			if err != nil {
				return "", 0, err
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return "", resp.StatusCode, err
			}
			if resp.StatusCode >= 300 {
				return "", resp.StatusCode, fmt.Errorf("ai chat completion: status %d", resp.StatusCode)
			}

			var parsed chatCompletionResponse
			if err := json.Unmarshal(raw, &parsed); err != nil {
				return "", resp.StatusCode, err
			}
			if len(parsed.Choices) == 0 {
				return "", resp.StatusCode, fmt.Errorf("ai chat completion: no choices returned")
			}
			return parsed.Choices[0].Message.Content, resp.StatusCode, nil
		})
	if result.Err != nil {
		return "", apperr.Upstream("ai reply generation failed", result.Err)
	}
	return result.Data, nil
}
