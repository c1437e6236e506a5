package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

type AuditLogStore struct {
	db *pgxpool.Pool
}

func NewAuditLogStore(db *pgxpool.Pool) *AuditLogStore {
	return &AuditLogStore{db: db}
}

func (s *AuditLogStore) Write(ctx context.Context, a domain.AuditLog) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_logs (dealership_id, user_id, action, resource, resource_id, details, ip_address)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.DealershipID, a.UserID, a.Action, a.Resource, a.ResourceID, a.Details, a.IPAddress)
	if err != nil {
		return store.Internal("audit.Write", err)
	}
	return nil
}
