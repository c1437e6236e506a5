package tenant

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

const passwordResetTTLHours = 1

type PasswordResetService struct {
	stores     *store.Stores
	clock      clock.Clock
	bcryptCost int
}

func NewPasswordResetService(stores *store.Stores, clk clock.Clock, bcryptCost int) *PasswordResetService {
	return &PasswordResetService{stores: stores, clock: clk, bcryptCost: bcryptCost}
}

// Request always succeeds from the caller's point of view, even when
// the email does not exist, to stay enumeration-resistant (spec.md
// §4.2). The raw token is returned only when a user was actually
// found; otherwise the token is "" and the error is nil.
func (s *PasswordResetService) Request(ctx context.Context, email string) (token string, err error) {
	user, err := s.stores.Users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil
	}

	raw := make([]byte, 32)
	if _, randErr := rand.Read(raw); randErr != nil {
		return "", apperr.Internal("passwordreset.Request.rand", randErr)
	}
	token = hex.EncodeToString(raw)

	hash, hashErr := bcrypt.GenerateFromPassword([]byte(token), s.bcryptCost)
	if hashErr != nil {
		return "", apperr.Internal("passwordreset.Request.hash", hashErr)
	}

	expiresAt := s.clock.Now().Add(passwordResetTTLHours * 3600_000_000_000)
	if _, err := s.stores.PasswordResets.Create(ctx, user.ID, string(hash), expiresAt); err != nil {
		return "", apperr.Internal("passwordreset.Request.create", err)
	}
	return token, nil
}

// Consume validates the raw token against every unexpired, unused row
// created recently (the same prefix-absent, iterate-and-compare shape
// as ExternalApiToken lookup — password reset tokens carry no indexed
// prefix since they are single-use and short-lived) and, on match, sets
// the new password hash and marks the row used.
func (s *PasswordResetService) Consume(ctx context.Context, rawToken, newPasswordHash string) error {
	since := s.clock.Now().Add(-passwordResetTTLHours * 3600_000_000_000)
	candidates, err := s.stores.PasswordResets.Unexpired(ctx, since)
	if err != nil {
		return apperr.Internal("passwordreset.Consume.lookup", err)
	}
	for _, cand := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(cand.TokenHash), []byte(rawToken)) == nil {
			if err := s.stores.Users.SetPasswordHash(ctx, cand.UserID, newPasswordHash); err != nil {
				return apperr.Internal("passwordreset.Consume.setPassword", err)
			}
			if err := s.stores.PasswordResets.MarkUsed(ctx, cand.ID); err != nil {
				return apperr.Internal("passwordreset.Consume.markUsed", err)
			}
			return nil
		}
	}
	return apperr.Auth("invalid or expired reset token")
}
