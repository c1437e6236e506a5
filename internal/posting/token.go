package posting

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

const (
	tokenTTL    = 5 * time.Minute
	dailyCapDefault = 10
)

// TokenIssuer mints and validates the one-time posting token the
// browser extension exchanges for permission to publish (spec.md §4.5).
type TokenIssuer struct {
	stores *store.Stores
	clock  clock.Clock
}

func NewTokenIssuer(stores *store.Stores, clk clock.Clock) *TokenIssuer {
	return &TokenIssuer{stores: stores, clock: clk}
}

// Mint re-checks the daily limit server-side, verifies the vehicle
// belongs to the dealership, then issues a single-use token bound to
// (userId, vehicleId, platform) with a short TTL.
func (t *TokenIssuer) Mint(ctx context.Context, dealershipID, userID, vehicleID int64, platform string) (domain.PostingToken, error) {
	if _, err := t.stores.Vehicles.Get(ctx, vehicleID, dealershipID); err != nil {
		return domain.PostingToken{}, apperr.NotFound("vehicle not found for this dealership")
	}

	settings, err := t.stores.Settings.Get(ctx, dealershipID)
	if err != nil {
		return domain.PostingToken{}, apperr.Internal("posting.Mint.settings", err)
	}
	dailyCap := settings.PostingDailyCap
	if dailyCap <= 0 {
		dailyCap = dailyCapDefault
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return domain.PostingToken{}, apperr.Internal("posting.Mint.random", err)
	}

	now := t.clock.Now()
	tok, err := t.stores.PostingTokens.MintIfUnderCap(ctx, domain.PostingToken{
		Token:        hex.EncodeToString(raw),
		DealershipID: dealershipID,
		UserID:       userID,
		VehicleID:    vehicleID,
		Platform:     platform,
		ExpiresAt:    now.Add(tokenTTL),
	}, int64(dailyCap), now)
	if store.IsCapExceeded(err) {
		return domain.PostingToken{}, apperr.Conflict("daily posting limit reached")
	}
	if err != nil {
		return domain.PostingToken{}, apperr.Internal("posting.Mint.store", err)
	}
	return tok, nil
}

// Consume validates and atomically marks a token used on a successful
// post report-back. On failure the token is left alone and expires on
// its own TTL (spec.md §4.5).
func (t *TokenIssuer) Consume(ctx context.Context, rawToken string) (domain.PostingToken, error) {
	tok, err := t.stores.PostingTokens.ValidateAndConsume(ctx, rawToken)
	if store.IsNotFound(err) {
		return domain.PostingToken{}, apperr.Auth("invalid or expired posting token")
	}
	if err != nil {
		return domain.PostingToken{}, apperr.Internal("posting.Consume", err)
	}
	return tok, nil
}

// Peek validates a token for a failure report-back without consuming
// it, so the same token can still be exchanged for a success report
// (or simply expire on its own TTL) on a later retry (spec.md §4.5).
func (t *TokenIssuer) Peek(ctx context.Context, rawToken string) (domain.PostingToken, error) {
	tok, err := t.stores.PostingTokens.Validate(ctx, rawToken)
	if store.IsNotFound(err) {
		return domain.PostingToken{}, apperr.Auth("invalid or expired posting token")
	}
	if err != nil {
		return domain.PostingToken{}, apperr.Internal("posting.Peek", err)
	}
	return tok, nil
}
