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

type ImpersonationStore struct {
	db *pgxpool.Pool
}

func NewImpersonationStore(db *pgxpool.Pool) *ImpersonationStore {
	return &ImpersonationStore{db: db}
}

const impersonationCols = `id, super_admin_id, target_user_id, started_at, ended_at, actions_performed`

func scanImpersonation(row pgx.Row) (domain.ImpersonationSession, error) {
	var i domain.ImpersonationSession
	err := row.Scan(&i.ID, &i.SuperAdminID, &i.TargetUserID, &i.StartedAt, &i.EndedAt, &i.ActionsPerformed)
	return i, err
}

// GetActive enforces the single-active-session-per-super-admin
// invariant: at most one row with ended_at IS NULL per super admin.
func (s *ImpersonationStore) GetActive(ctx context.Context, superAdminID int64) (domain.ImpersonationSession, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+impersonationCols+` FROM impersonation_sessions
		WHERE super_admin_id = $1 AND ended_at IS NULL`, superAdminID)
	i, err := scanImpersonation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ImpersonationSession{}, false, nil
	}
	if err != nil {
		return domain.ImpersonationSession{}, false, store.Internal("impersonation.GetActive", err)
	}
	return i, true, nil
}

func (s *ImpersonationStore) Start(ctx context.Context, sess domain.ImpersonationSession) (domain.ImpersonationSession, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO impersonation_sessions (super_admin_id, target_user_id, started_at, actions_performed)
		VALUES ($1, $2, now(), 0)
		RETURNING `+impersonationCols,
		sess.SuperAdminID, sess.TargetUserID)
	out, err := scanImpersonation(row)
	if err != nil {
		return domain.ImpersonationSession{}, store.Internal("impersonation.Start", err)
	}
	return out, nil
}

func (s *ImpersonationStore) End(ctx context.Context, id int64, endedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE impersonation_sessions SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL`, id, endedAt)
	if err != nil {
		return store.Internal("impersonation.End", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *ImpersonationStore) IncrementActions(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE impersonation_sessions SET actions_performed = actions_performed + 1 WHERE id = $1`, id)
	if err != nil {
		return store.Internal("impersonation.IncrementActions", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
