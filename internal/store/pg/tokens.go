package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

type TokenStore struct {
	db *pgxpool.Pool
}

func NewTokenStore(db *pgxpool.Pool) *TokenStore {
	return &TokenStore{db: db}
}

const tokenCols = `id, dealership_id, token_name, token_hash, token_prefix, permissions, expires_at, is_active, last_used_at, created_at`

func scanToken(row pgx.Row) (domain.ExternalApiToken, error) {
	var t domain.ExternalApiToken
	var perms []string
	err := row.Scan(&t.ID, &t.DealershipID, &t.TokenName, &t.TokenHash, &t.TokenPrefix, &perms,
		&t.ExpiresAt, &t.IsActive, &t.LastUsedAt, &t.CreatedAt)
	for _, p := range perms {
		t.Permissions = append(t.Permissions, domain.Capability(p))
	}
	return t, err
}

func (s *TokenStore) Create(ctx context.Context, t domain.ExternalApiToken) (domain.ExternalApiToken, error) {
	perms := make([]string, len(t.Permissions))
	for i, p := range t.Permissions {
		perms[i] = string(p)
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO external_api_tokens (dealership_id, token_name, token_hash, token_prefix, permissions, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING `+tokenCols,
		t.DealershipID, t.TokenName, t.TokenHash, t.TokenPrefix, perms, t.ExpiresAt)
	out, err := scanToken(row)
	if err != nil {
		return domain.ExternalApiToken{}, store.Internal("tokens.Create", err)
	}
	return out, nil
}

// CandidatesByPrefix returns active, unexpired tokens matching the
// non-unique-but-near-unique indexed prefix; callers bcrypt-compare the
// raw token against each candidate (spec.md §3).
func (s *TokenStore) CandidatesByPrefix(ctx context.Context, prefix string) ([]domain.ExternalApiToken, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+tokenCols+` FROM external_api_tokens
		WHERE token_prefix = $1 AND is_active
		  AND (expires_at IS NULL OR expires_at > now())`, prefix)
	if err != nil {
		return nil, store.Internal("tokens.CandidatesByPrefix", err)
	}
	defer rows.Close()

	var out []domain.ExternalApiToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, store.Internal("tokens.CandidatesByPrefix.scan", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *TokenStore) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE external_api_tokens SET last_used_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return store.Internal("tokens.TouchLastUsed", err)
	}
	return nil
}

func (s *TokenStore) Revoke(ctx context.Context, id int64, dealershipID int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE external_api_tokens SET is_active = false
		WHERE id = $1 AND dealership_id = $2`, id, dealershipID)
	if err != nil {
		return store.Internal("tokens.Revoke", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
