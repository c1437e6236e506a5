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

	"github.com/ayubfarah/dealer-ops-core/internal/posting"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

const browserAutomationTimeout = 60 * time.Second

// BrowserAutomation calls out to the browser-automation service — the
// core never drives a browser itself (spec.md §1 non-goals), it posts
// {vehicle, images, description, sessionCookies} and relays back
// {success, listingUrl, error}.
type BrowserAutomation struct {
	client  *http.Client
	baseURL string
	logs    store.ApiLogStore
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewBrowserAutomation(baseURL string, logs store.ApiLogStore, logger *slog.Logger) *BrowserAutomation {
	return &BrowserAutomation{
		client:  &http.Client{Timeout: browserAutomationTimeout},
		baseURL: baseURL,
		logs:    logs,
		limiter: rate.NewLimiter(rate.Limit(1), 3),
		logger:  logger,
	}
}

type postVehiclePayload struct {
	VIN            string   `json:"vin"`
	Year           int      `json:"year"`
	Make           string   `json:"make"`
	Model          string   `json:"model"`
	Trim           string   `json:"trim"`
	Price          string   `json:"price"`
	Images         []string `json:"images"`
	Description    string   `json:"description"`
	SessionCookies string   `json:"sessionCookies"`
	Platform       string   `json:"platform"`
	AccountID      string   `json:"accountId"`
}

type postResponse struct {
	Success    bool   `json:"success"`
	ListingURL string `json:"listingUrl"`
	Error      string `json:"error"`
}

// Post implements posting.BrowserAutomation.
func (b *BrowserAutomation) Post(ctx context.Context, req posting.PostRequest) (posting.PostOutcome, error) {
	dealershipID := req.Vehicle.DealershipID
	result := Call(ctx, b.logs, b.limiter, b.logger, &dealershipID, "browser_automation",
		fmt.Sprintf("post vehicle=%d platform=%s", req.Vehicle.ID, req.Platform), browserAutomationTimeout,
		func(ctx context.Context) (postResponse, int, error) {
			payload, err := json.Marshal(postVehiclePayload{
				VIN:            req.Vehicle.VIN,
				Year:           req.Vehicle.Year,
				Make:           req.Vehicle.Make,
				Model:          req.Vehicle.Model,
				Trim:           req.Vehicle.Trim,
				Price:          req.Vehicle.Price.String(),
				Images:         req.Images,
				Description:    req.Description,
				SessionCookies: req.SessionCookies,
				Platform:       req.Platform,
				AccountID:      req.AccountID,
			})
			if err != nil {
				return postResponse{}, 0, err
			}

			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/post", bytes.NewReader(payload))
			if err != nil {
				return postResponse{}, 0, err
			}
			httpReq.Header.Set("Content-Type", "application/json")

			resp, err := b.client.Do(httpReq)
			if err != nil {
				return postResponse{}, 0, err
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return postResponse{}, resp.StatusCode, err
			}
			if resp.StatusCode >= 300 {
				return postResponse{}, resp.StatusCode, fmt.Errorf("browser automation post: status %d", resp.StatusCode)
			}

			var parsed postResponse
			if err := json.Unmarshal(raw, &parsed); err != nil {
				return postResponse{}, resp.StatusCode, err
			}
			return parsed, resp.StatusCode, nil
		})

	if result.Err != nil {
		return posting.PostOutcome{Success: false, Error: result.Err.Error()}, nil
	}
	return posting.PostOutcome{
		Success:    result.Data.Success,
		ListingURL: result.Data.ListingURL,
		Error:      result.Data.Error,
	}, nil
}
