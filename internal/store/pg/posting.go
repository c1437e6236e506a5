package pg

import (
	"time"

	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

type PostingQueueStore struct {
	db *pgxpool.Pool
}

func NewPostingQueueStore(db *pgxpool.Pool) *PostingQueueStore {
	return &PostingQueueStore{db: db}
}

const postingQueueCols = `id, dealership_id, user_id, vehicle_id, account_id, template_id, status,
	priority, attempt_count, last_error, scheduled_for, posted_at, external_listing_id, created_at, updated_at`

func scanPostingQueueItem(row pgx.Row) (domain.PostingQueueItem, error) {
	var p domain.PostingQueueItem
	err := row.Scan(&p.ID, &p.DealershipID, &p.UserID, &p.VehicleID, &p.AccountID, &p.TemplateID, &p.Status,
		&p.Priority, &p.AttemptCount, &p.LastError, &p.ScheduledFor, &p.PostedAt, &p.ExternalListingID,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *PostingQueueStore) Enqueue(ctx context.Context, item domain.PostingQueueItem) (domain.PostingQueueItem, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO posting_queue (dealership_id, user_id, vehicle_id, account_id, template_id, status,
			priority, attempt_count, scheduled_for)
		VALUES ($1,$2,$3,$4,$5,'queued',$6,0,$7)
		RETURNING `+postingQueueCols,
		item.DealershipID, item.UserID, item.VehicleID, item.AccountID, item.TemplateID, item.Priority, item.ScheduledFor)
	out, err := scanPostingQueueItem(row)
	if err != nil {
		return domain.PostingQueueItem{}, store.Internal("posting.Enqueue", err)
	}
	return out, nil
}

// NextReady claims up to limit queued items for a dealership's worker,
// locking rows with FOR UPDATE SKIP LOCKED so two workers never claim
// the same job (spec.md §5 — generalized from the teacher's bid-engine
// per-auction worker claim pattern).
func (s *PostingQueueStore) NextReady(ctx context.Context, dealershipID int64, limit int) ([]domain.PostingQueueItem, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, store.Internal("posting.NextReady.begin", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT `+postingQueueCols+` FROM posting_queue
		WHERE dealership_id = $1 AND status = 'queued' AND scheduled_for <= now()
		ORDER BY priority ASC, created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, dealershipID, limit)
	if err != nil {
		return nil, store.Internal("posting.NextReady.query", err)
	}

	var out []domain.PostingQueueItem
	for rows.Next() {
		p, err := scanPostingQueueItem(rows)
		if err != nil {
			rows.Close()
			return nil, store.Internal("posting.NextReady.scan", err)
		}
		out = append(out, p)
	}
	rows.Close()

	var ids []int64
	for _, p := range out {
		ids = append(ids, p.ID)
	}
	if len(ids) > 0 {
		if _, err := tx.Exec(ctx, `UPDATE posting_queue SET status = 'posting', updated_at = now() WHERE id = ANY($1)`, ids); err != nil {
			return nil, store.Internal("posting.NextReady.claim", err)
		}
		for i := range out {
			out[i].Status = domain.PostingPosting
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, store.Internal("posting.NextReady.commit", err)
	}
	return out, nil
}

func (s *PostingQueueStore) MarkStatus(ctx context.Context, id int64, status domain.PostingStatus, lastError string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE posting_queue SET status = $2, last_error = $3, updated_at = now()
		WHERE id = $1`, id, status, lastError)
	if err != nil {
		return store.Internal("posting.MarkStatus", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostingQueueStore) MarkPosted(ctx context.Context, id int64, externalListingID string, postedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE posting_queue SET status = 'posted', external_listing_id = $2, posted_at = $3, updated_at = now()
		WHERE id = $1`, id, externalListingID, postedAt)
	if err != nil {
		return store.Internal("posting.MarkPosted", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostingQueueStore) IncrementAttempt(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE posting_queue SET attempt_count = attempt_count + 1, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return store.Internal("posting.IncrementAttempt", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
