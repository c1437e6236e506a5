package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

type PostingTokenStore struct {
	db *pgxpool.Pool
}

func NewPostingTokenStore(db *pgxpool.Pool) *PostingTokenStore {
	return &PostingTokenStore{db: db}
}

const postingTokenCols = `token, dealership_id, user_id, vehicle_id, platform, expires_at, used_at, created_at`

func scanPostingToken(row pgx.Row) (domain.PostingToken, error) {
	var t domain.PostingToken
	err := row.Scan(&t.Token, &t.DealershipID, &t.UserID, &t.VehicleID, &t.Platform,
		&t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	return t, err
}

func (s *PostingTokenStore) Mint(ctx context.Context, t domain.PostingToken) (domain.PostingToken, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO posting_tokens (token, dealership_id, user_id, vehicle_id, platform, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING `+postingTokenCols,
		t.Token, t.DealershipID, t.UserID, t.VehicleID, t.Platform, t.ExpiresAt)
	out, err := scanPostingToken(row)
	if isUniqueViolation(err) {
		return domain.PostingToken{}, store.ErrAlreadyExists
	}
	if err != nil {
		return domain.PostingToken{}, store.Internal("postingtokens.Mint", err)
	}
	return out, nil
}

// MintIfUnderCap is the transactional count-and-insert Mint needs: an
// advisory lock scoped to (dealershipId, userId) serializes concurrent
// mints for the same user so the count this transaction sees can never
// go stale before the insert lands — two concurrent mints at the cap
// boundary cannot both succeed (spec.md §5).
func (s *PostingTokenStore) MintIfUnderCap(ctx context.Context, t domain.PostingToken, dailyCap int64, day time.Time) (domain.PostingToken, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.PostingToken{}, store.Internal("postingtokens.MintIfUnderCap.begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2, 0))`,
		t.DealershipID, t.UserID); err != nil {
		return domain.PostingToken{}, store.Internal("postingtokens.MintIfUnderCap.lock", err)
	}

	var count int64
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM posting_tokens
		WHERE dealership_id = $1 AND user_id = $2
		  AND used_at IS NOT NULL
		  AND used_at >= date_trunc('day', $3::timestamptz)
		  AND used_at < date_trunc('day', $3::timestamptz) + interval '1 day'`,
		t.DealershipID, t.UserID, day).Scan(&count); err != nil {
		return domain.PostingToken{}, store.Internal("postingtokens.MintIfUnderCap.count", err)
	}
	if count >= dailyCap {
		return domain.PostingToken{}, store.ErrCapExceeded
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO posting_tokens (token, dealership_id, user_id, vehicle_id, platform, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING `+postingTokenCols,
		t.Token, t.DealershipID, t.UserID, t.VehicleID, t.Platform, t.ExpiresAt)
	out, err := scanPostingToken(row)
	if err != nil {
		return domain.PostingToken{}, store.Internal("postingtokens.MintIfUnderCap.insert", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.PostingToken{}, store.Internal("postingtokens.MintIfUnderCap.commit", err)
	}
	return out, nil
}

// ValidateAndConsume atomically marks the token used, in the same
// statement that checks it is unexpired and not already used — a
// concurrent second call for the same raw token sees zero rows
// affected and reports not-found, never a double-post (spec.md §4.5).
func (s *PostingTokenStore) ValidateAndConsume(ctx context.Context, token string) (domain.PostingToken, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE posting_tokens SET used_at = now()
		WHERE token = $1 AND used_at IS NULL AND expires_at > now()
		RETURNING `+postingTokenCols, token)
	t, err := scanPostingToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PostingToken{}, store.ErrNotFound
	}
	if err != nil {
		return domain.PostingToken{}, store.Internal("postingtokens.ValidateAndConsume", err)
	}
	return t, nil
}

// Validate checks a token is unexpired and not yet used without
// mutating it — the report-back failure path needs the token's
// dealership/vehicle/platform but must leave it consumable until TTL
// expiry (spec.md §4.5).
func (s *PostingTokenStore) Validate(ctx context.Context, token string) (domain.PostingToken, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+postingTokenCols+` FROM posting_tokens
		WHERE token = $1 AND used_at IS NULL AND expires_at > now()`, token)
	t, err := scanPostingToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PostingToken{}, store.ErrNotFound
	}
	if err != nil {
		return domain.PostingToken{}, store.Internal("postingtokens.Validate", err)
	}
	return t, nil
}

func (s *PostingTokenStore) CountSuccessfulToday(ctx context.Context, dealershipID, userID int64, day time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM posting_tokens
		WHERE dealership_id = $1 AND user_id = $2
		  AND used_at IS NOT NULL
		  AND used_at >= date_trunc('day', $3::timestamptz)
		  AND used_at < date_trunc('day', $3::timestamptz) + interval '1 day'`,
		dealershipID, userID, day).Scan(&count)
	if err != nil {
		return 0, store.Internal("postingtokens.CountSuccessfulToday", err)
	}
	return count, nil
}
