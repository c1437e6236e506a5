package tenant

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/clock"
)

const replayWindow = 5 * time.Minute

func sign(secret string, parts ...[]byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	for i, p := range parts {
		if i > 0 {
			mac.Write([]byte("."))
		}
		mac.Write(p)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// SignExtensionRequest computes the signature the browser extension
// signs over: method, path, timestamp and body, with its per-extension
// HMAC key (spec.md §4.2 resolution step 2).
func SignExtensionRequest(secret, method, path string, timestamp int64, body []byte) string {
	return sign(secret, []byte(method), []byte(path), []byte(strconv.FormatInt(timestamp, 10)), body)
}

// VerifyExtensionSignature validates the extension HMAC header,
// rejecting any timestamp outside the replay window in either
// direction.
func VerifyExtensionSignature(clk clock.Clock, secret, method, path, timestampHeader, signatureHeader string, body []byte) error {
	ts, err := parseAndCheckTimestamp(clk, timestampHeader)
	if err != nil {
		return err
	}
	expected := SignExtensionRequest(secret, method, path, ts, body)
	return constantTimeCompare(expected, signatureHeader)
}

// SignWebhookPayload computes the signature scheme shared by the scrape
// webhook and the CRM webhook: timestamp + body only.
func SignWebhookPayload(secret string, timestamp int64, body []byte) string {
	return sign(secret, []byte(strconv.FormatInt(timestamp, 10)), body)
}

// VerifyWebhookSignature validates the scrape/CRM webhook HMAC header
// (spec.md §4.2 "Webhook HMAC").
func VerifyWebhookSignature(clk clock.Clock, secret, timestampHeader, signatureHeader string, body []byte) error {
	ts, err := parseAndCheckTimestamp(clk, timestampHeader)
	if err != nil {
		return err
	}
	expected := SignWebhookPayload(secret, ts, body)
	return constantTimeCompare(expected, signatureHeader)
}

func parseAndCheckTimestamp(clk clock.Clock, timestampHeader string) (int64, error) {
	ts, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return 0, apperr.Auth("invalid signature timestamp")
	}
	now := clk.Now()
	signedAt := time.UnixMilli(ts)
	if signedAt.Before(now.Add(-replayWindow)) || signedAt.After(now.Add(replayWindow)) {
		return 0, apperr.Auth("signature timestamp outside replay window")
	}
	return ts, nil
}

func constantTimeCompare(expected, actual string) error {
	if !hmac.Equal([]byte(expected), []byte(actual)) {
		return apperr.Auth("signature mismatch")
	}
	return nil
}
