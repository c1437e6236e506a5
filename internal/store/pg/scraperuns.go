package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

type ScrapeRunStore struct {
	db *pgxpool.Pool
}

func NewScrapeRunStore(db *pgxpool.Pool) *ScrapeRunStore {
	return &ScrapeRunStore{db: db}
}

const scrapeRunCols = `id, dealership_id, triggered_by, method, retry_count, vehicles_found,
	vehicles_inserted, vehicles_updated, vehicles_deleted, started_at, ended_at, error, interrupted`

func scanScrapeRun(row pgx.Row) (domain.ScrapeRun, error) {
	var r domain.ScrapeRun
	err := row.Scan(&r.ID, &r.DealershipID, &r.TriggeredBy, &r.Method, &r.RetryCount, &r.VehiclesFound,
		&r.VehiclesInserted, &r.VehiclesUpdated, &r.VehiclesDeleted, &r.StartedAt, &r.EndedAt, &r.Error, &r.Interrupted)
	return r, err
}

func (s *ScrapeRunStore) Start(ctx context.Context, r domain.ScrapeRun) (domain.ScrapeRun, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO scrape_runs (dealership_id, triggered_by, method, retry_count, started_at, interrupted)
		VALUES ($1, $2, '', 0, now(), false)
		RETURNING `+scrapeRunCols,
		r.DealershipID, r.TriggeredBy)
	out, err := scanScrapeRun(row)
	if err != nil {
		return domain.ScrapeRun{}, store.Internal("scraperuns.Start", err)
	}
	return out, nil
}

func (s *ScrapeRunStore) Finish(ctx context.Context, id int64, r domain.ScrapeRun) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE scrape_runs SET
			method = $2, retry_count = $3, vehicles_found = $4, vehicles_inserted = $5,
			vehicles_updated = $6, vehicles_deleted = $7, ended_at = now(), error = $8, interrupted = $9
		WHERE id = $1`,
		id, r.Method, r.RetryCount, r.VehiclesFound, r.VehiclesInserted, r.VehiclesUpdated, r.VehiclesDeleted,
		r.Error, r.Interrupted)
	if err != nil {
		return store.Internal("scraperuns.Finish", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *ScrapeRunStore) List(ctx context.Context, dealershipID int64, page store.Page) (store.Paginated[domain.ScrapeRun], error) {
	page = page.Normalize()
	rows, err := s.db.Query(ctx, `
		SELECT `+scrapeRunCols+` FROM scrape_runs
		WHERE dealership_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3`, dealershipID, page.Limit, page.Offset)
	if err != nil {
		return store.Paginated[domain.ScrapeRun]{}, store.Internal("scraperuns.List", err)
	}
	defer rows.Close()

	var out []domain.ScrapeRun
	for rows.Next() {
		r, err := scanScrapeRun(rows)
		if err != nil {
			return store.Paginated[domain.ScrapeRun]{}, store.Internal("scraperuns.List.scan", err)
		}
		out = append(out, r)
	}

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM scrape_runs WHERE dealership_id = $1`, dealershipID).Scan(&total); err != nil {
		return store.Paginated[domain.ScrapeRun]{}, store.Internal("scraperuns.List.count", err)
	}

	return store.Paginated[domain.ScrapeRun]{Items: out, Total: total}, nil
}
