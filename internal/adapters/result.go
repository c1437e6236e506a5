// Package adapters implements C7: the concrete external-service clients
// (CRM, AI model, scraper extraction, blob storage, browser automation,
// email fallback) consumed through interfaces declared by their calling
// packages (conversation.CRMAdapter, inventory.BlobStore, and so on).
package adapters

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/metrics"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

// Result is the structured outcome every adapter call reduces to before
// an ApiLog row is written, mirroring the teacher's BidResult shape:
// a small struct, no panics, explicit success/error fields.
type Result[T any] struct {
	Data      T
	Success   bool
	ErrorCode string
	Err       error
}

const maxRetries = 3

// retryableStatus reports whether statusCode should trigger a retry —
// 429 (rate limited) or any 5xx.
func retryableStatus(statusCode int) bool {
	return statusCode == 429 || statusCode >= 500
}

// Call wraps a single outbound adapter invocation: a timeout bound on
// ctx, up to maxRetries retries (maxRetries+1 attempts in all) with
// exponential backoff on 429/5xx
// (paced by limiter so a burst of calls doesn't itself trip the
// upstream's rate limit), and an ApiLog row recording the final
// outcome. fn must return the result value, an HTTP-ish status code (0
// when not applicable), and an error.
func Call[T any](
	ctx context.Context,
	logs store.ApiLogStore,
	limiter *rate.Limiter,
	logger *slog.Logger,
	dealershipID *int64,
	adapter string,
	requestSummary string,
	timeout time.Duration,
	fn func(ctx context.Context) (T, int, error),
) Result[T] {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var (
		data       T
		statusCode int
		err        error
	)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if limiter != nil {
			if waitErr := limiter.Wait(ctx); waitErr != nil {
				err = waitErr
				break
			}
		}

		data, statusCode, err = fn(ctx)
		if err == nil || !retryableStatus(statusCode) || attempt == maxRetries {
			break
		}

		backoff := time.Duration(1<<attempt) * 250 * time.Millisecond
		logger.Debug("adapter_retry",
			slog.String("adapter", adapter),
			slog.Int("attempt", attempt+1),
			slog.Int("status_code", statusCode),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			err = ctx.Err()
		}
		if ctx.Err() != nil {
			break
		}
	}

	latency := time.Since(start)
	success := err == nil

	errorCode := ""
	if !success {
		errorCode = "error"
		if statusCode != 0 {
			errorCode = statusCode2Code(statusCode)
		}
	}

	metrics.ExternalAPICallsTotal.WithLabelValues(adapter, outcomeLabel(success)).Inc()
	metrics.ExternalAPILatency.WithLabelValues(adapter).Observe(latency.Seconds())

	if logs != nil {
		logErr := logs.Write(context.WithoutCancel(ctx), domain.ApiLog{
			DealershipID:   dealershipID,
			Adapter:        adapter,
			RequestSummary: requestSummary,
			Success:        success,
			StatusCode:     statusCode,
			ErrorCode:      errorCode,
			LatencyMS:      latency.Milliseconds(),
		})
		if logErr != nil {
			logger.Error("api_log_write_failed", slog.String("adapter", adapter), slog.String("error", logErr.Error()))
		}
	}

	return Result[T]{Data: data, Success: success, ErrorCode: errorCode, Err: err}
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func statusCode2Code(statusCode int) string {
	switch {
	case statusCode == 429:
		return "rate_limited"
	case statusCode >= 500:
		return "upstream_5xx"
	case statusCode >= 400:
		return "upstream_4xx"
	default:
		return "error"
	}
}
