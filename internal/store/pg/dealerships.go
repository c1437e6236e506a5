package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

type DealershipStore struct {
	db *pgxpool.Pool
}

func NewDealershipStore(db *pgxpool.Pool) *DealershipStore {
	return &DealershipStore{db: db}
}

func scanDealership(row pgx.Row) (domain.Dealership, error) {
	var d domain.Dealership
	err := row.Scan(&d.ID, &d.Slug, &d.Subdomain, &d.DisplayName, &d.IsActive, &d.CreatedAt)
	return d, err
}

func (s *DealershipStore) GetByID(ctx context.Context, id int64) (domain.Dealership, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, slug, subdomain, display_name, is_active, created_at
		FROM dealerships WHERE id = $1`, id)
	d, err := scanDealership(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Dealership{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Dealership{}, store.Internal("dealerships.GetByID", err)
	}
	return d, nil
}

func (s *DealershipStore) GetBySubdomain(ctx context.Context, subdomain string) (domain.Dealership, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, slug, subdomain, display_name, is_active, created_at
		FROM dealerships WHERE subdomain = $1 AND is_active`, subdomain)
	d, err := scanDealership(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Dealership{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Dealership{}, store.Internal("dealerships.GetBySubdomain", err)
	}
	return d, nil
}

func (s *DealershipStore) GetBySlug(ctx context.Context, slug string) (domain.Dealership, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, slug, subdomain, display_name, is_active, created_at
		FROM dealerships WHERE slug = $1`, slug)
	d, err := scanDealership(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Dealership{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Dealership{}, store.Internal("dealerships.GetBySlug", err)
	}
	return d, nil
}

func (s *DealershipStore) ListActive(ctx context.Context) ([]domain.Dealership, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, slug, subdomain, display_name, is_active, created_at
		FROM dealerships WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, store.Internal("dealerships.ListActive", err)
	}
	defer rows.Close()

	var out []domain.Dealership
	for rows.Next() {
		d, err := scanDealership(rows)
		if err != nil {
			return nil, store.Internal("dealerships.ListActive.scan", err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *DealershipStore) Create(ctx context.Context, d domain.Dealership) (domain.Dealership, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO dealerships (slug, subdomain, display_name, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, slug, subdomain, display_name, is_active, created_at`,
		d.Slug, d.Subdomain, d.DisplayName, d.IsActive)
	out, err := scanDealership(row)
	if isUniqueViolation(err) {
		return domain.Dealership{}, store.ErrAlreadyExists
	}
	if err != nil {
		return domain.Dealership{}, store.Internal("dealerships.Create", err)
	}
	return out, nil
}
