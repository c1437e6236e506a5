package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

type PasswordResetStore struct {
	db *pgxpool.Pool
}

func NewPasswordResetStore(db *pgxpool.Pool) *PasswordResetStore {
	return &PasswordResetStore{db: db}
}

func (s *PasswordResetStore) Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO password_resets (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id`, userID, tokenHash, expiresAt).Scan(&id)
	if err != nil {
		return 0, store.Internal("passwordresets.Create", err)
	}
	return id, nil
}

// Unexpired returns every reset row created since the cutoff that has
// not yet expired or been used — callers bcrypt-compare the raw token
// against each candidate's hash. Unlike ExternalApiToken lookup, no
// prefix narrows the candidate set.
func (s *PasswordResetStore) Unexpired(ctx context.Context, since time.Time) ([]store.PasswordResetRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, token_hash, expires_at, used_at
		FROM password_resets
		WHERE created_at >= $1 AND expires_at > now() AND used_at IS NULL`, since)
	if err != nil {
		return nil, store.Internal("passwordresets.Unexpired", err)
	}
	defer rows.Close()

	var out []store.PasswordResetRow
	for rows.Next() {
		var r store.PasswordResetRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.TokenHash, &r.ExpiresAt, &r.UsedAt); err != nil {
			return nil, store.Internal("passwordresets.Unexpired.scan", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *PasswordResetStore) MarkUsed(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE password_resets SET used_at = now() WHERE id = $1 AND used_at IS NULL`, id)
	if err != nil {
		return store.Internal("passwordresets.MarkUsed", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
