package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

type ApiLogStore struct {
	db *pgxpool.Pool
}

func NewApiLogStore(db *pgxpool.Pool) *ApiLogStore {
	return &ApiLogStore{db: db}
}

func (s *ApiLogStore) Write(ctx context.Context, a domain.ApiLog) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO api_logs (dealership_id, adapter, request_summary, success, status_code, error_code, latency_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.DealershipID, a.Adapter, a.RequestSummary, a.Success, a.StatusCode, a.ErrorCode, a.LatencyMS)
	if err != nil {
		return store.Internal("apilogs.Write", err)
	}
	return nil
}
