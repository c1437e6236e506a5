package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

type ListingStore struct {
	db *pgxpool.Pool
}

func NewListingStore(db *pgxpool.Pool) *ListingStore {
	return &ListingStore{db: db}
}

const listingCols = `id, dealership_id, vehicle_id, account_id, platform, external_listing_id, status,
	posted_at, last_checked_at`

func scanListing(row pgx.Row) (domain.Listing, error) {
	var l domain.Listing
	err := row.Scan(&l.ID, &l.DealershipID, &l.VehicleID, &l.AccountID, &l.Platform, &l.ExternalListingID,
		&l.Status, &l.PostedAt, &l.LastCheckedAt)
	return l, err
}

// Upsert keys on (vehicleId, accountId) per spec.md §3.2 — a listing
// is re-posted in place rather than duplicated.
func (s *ListingStore) Upsert(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO listings (dealership_id, vehicle_id, account_id, platform, external_listing_id,
			status, posted_at, last_checked_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (vehicle_id, account_id) DO UPDATE SET
			platform = EXCLUDED.platform,
			external_listing_id = EXCLUDED.external_listing_id,
			status = EXCLUDED.status,
			posted_at = EXCLUDED.posted_at,
			last_checked_at = EXCLUDED.last_checked_at
		RETURNING `+listingCols,
		l.DealershipID, l.VehicleID, l.AccountID, l.Platform, l.ExternalListingID,
		l.Status, l.PostedAt, l.LastCheckedAt)
	out, err := scanListing(row)
	if err != nil {
		return domain.Listing{}, store.Internal("listings.Upsert", err)
	}
	return out, nil
}
