package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

type VehicleStore struct {
	db *pgxpool.Pool
}

func NewVehicleStore(db *pgxpool.Pool) *VehicleStore {
	return &VehicleStore{db: db}
}

const vehicleCols = `id, dealership_id, year, make, model, trim, type, price, odometer, vin, stock_number,
	images, local_images, carfax_url, dealer_vdp_url, last_scraped_at, marketplace_posted_at,
	social_templates, manual_headline, manual_subheadline, manual_description, is_manually_edited,
	created_at, updated_at`

func scanVehicle(row pgx.Row) (domain.Vehicle, error) {
	var v domain.Vehicle
	var price float64
	err := row.Scan(&v.ID, &v.DealershipID, &v.Year, &v.Make, &v.Model, &v.Trim, &v.Type,
		&price, &v.Odometer, &v.VIN, &v.StockNumber,
		&v.Images, &v.LocalImages, &v.CarfaxURL, &v.DealerVdpURL, &v.LastScrapedAt, &v.MarketplacePostedAt,
		&v.SocialTemplates, &v.ManualHeadline, &v.ManualSubheadline, &v.ManualDescription, &v.IsManuallyEdited,
		&v.CreatedAt, &v.UpdatedAt)
	v.Price = decimal.NewFromFloat(price)
	return v, err
}

func (s *VehicleStore) Get(ctx context.Context, id int64, dealershipID int64) (domain.Vehicle, error) {
	row := s.db.QueryRow(ctx, `SELECT `+vehicleCols+` FROM vehicles WHERE id = $1 AND dealership_id = $2`, id, dealershipID)
	v, err := scanVehicle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Cross-tenant lookups return not-found, never forbidden
		// (spec.md §8 invariant 1).
		return domain.Vehicle{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Vehicle{}, store.Internal("vehicles.Get", err)
	}
	return v, nil
}

func (s *VehicleStore) GetByVIN(ctx context.Context, vin string, dealershipID int64) (domain.Vehicle, error) {
	row := s.db.QueryRow(ctx, `SELECT `+vehicleCols+` FROM vehicles WHERE vin = $1 AND dealership_id = $2`, vin, dealershipID)
	v, err := scanVehicle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Vehicle{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Vehicle{}, store.Internal("vehicles.GetByVIN", err)
	}
	return v, nil
}

func (s *VehicleStore) List(ctx context.Context, dealershipID int64, filter store.VehicleFilter, page store.Page) (store.Paginated[domain.Vehicle], error) {
	page = page.Normalize()
	rows, err := s.db.Query(ctx, `
		SELECT `+vehicleCols+` FROM vehicles
		WHERE dealership_id = $1
		  AND ($2 = '' OR make ILIKE $2)
		  AND ($3 = '' OR model ILIKE $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		dealershipID, filter.Make, filter.Model, page.Limit, page.Offset)
	if err != nil {
		return store.Paginated[domain.Vehicle]{}, store.Internal("vehicles.List", err)
	}
	defer rows.Close()

	var out []domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return store.Paginated[domain.Vehicle]{}, store.Internal("vehicles.List.scan", err)
		}
		out = append(out, v)
	}

	var total int64
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM vehicles
		WHERE dealership_id = $1 AND ($2 = '' OR make ILIKE $2) AND ($3 = '' OR model ILIKE $3)`,
		dealershipID, filter.Make, filter.Model).Scan(&total); err != nil {
		return store.Paginated[domain.Vehicle]{}, store.Internal("vehicles.List.count", err)
	}

	return store.Paginated[domain.Vehicle]{Items: out, Total: total}, nil
}

func (s *VehicleStore) Create(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error) {
	price, _ := v.Price.Float64()
	row := s.db.QueryRow(ctx, `
		INSERT INTO vehicles (dealership_id, year, make, model, trim, type, price, odometer, vin, stock_number,
			images, local_images, carfax_url, dealer_vdp_url, last_scraped_at, marketplace_posted_at,
			social_templates, manual_headline, manual_subheadline, manual_description, is_manually_edited)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		RETURNING `+vehicleCols,
		v.DealershipID, v.Year, v.Make, v.Model, v.Trim, v.Type, price, v.Odometer, nullIfEmpty(v.VIN), v.StockNumber,
		v.Images, v.LocalImages, v.CarfaxURL, v.DealerVdpURL, v.LastScrapedAt, v.MarketplacePostedAt,
		v.SocialTemplates, v.ManualHeadline, v.ManualSubheadline, v.ManualDescription, v.IsManuallyEdited)
	out, err := scanVehicle(row)
	if isUniqueViolation(err) {
		return domain.Vehicle{}, store.ErrAlreadyExists
	}
	if err != nil {
		return domain.Vehicle{}, store.Internal("vehicles.Create", err)
	}
	return out, nil
}

func (s *VehicleStore) Update(ctx context.Context, v domain.Vehicle) error {
	price, _ := v.Price.Float64()
	tag, err := s.db.Exec(ctx, `
		UPDATE vehicles SET
			year=$3, make=$4, model=$5, trim=$6, type=$7, price=$8, odometer=$9, vin=$10, stock_number=$11,
			images=$12, local_images=$13, carfax_url=$14, dealer_vdp_url=$15, last_scraped_at=$16,
			marketplace_posted_at=$17, social_templates=$18, manual_headline=$19, manual_subheadline=$20,
			manual_description=$21, is_manually_edited=$22, updated_at=now()
		WHERE id=$1 AND dealership_id=$2`,
		v.ID, v.DealershipID, v.Year, v.Make, v.Model, v.Trim, v.Type, price, v.Odometer, nullIfEmpty(v.VIN), v.StockNumber,
		v.Images, v.LocalImages, v.CarfaxURL, v.DealerVdpURL, v.LastScrapedAt, v.MarketplacePostedAt,
		v.SocialTemplates, v.ManualHeadline, v.ManualSubheadline, v.ManualDescription, v.IsManuallyEdited)
	if err != nil {
		return store.Internal("vehicles.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *VehicleStore) Delete(ctx context.Context, id int64, dealershipID int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM vehicles WHERE id = $1 AND dealership_id = $2`, id, dealershipID)
	if err != nil {
		return store.Internal("vehicles.Delete", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *VehicleStore) CountActive(ctx context.Context, dealershipID int64) (int64, error) {
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM vehicles WHERE dealership_id = $1`, dealershipID).Scan(&total); err != nil {
		return 0, store.Internal("vehicles.CountActive", err)
	}
	return total, nil
}

// VINsNotIn previews the delete-subtract set without mutating (dryRun).
func (s *VehicleStore) VINsNotIn(ctx context.Context, dealershipID int64, keepVINs []string) ([]string, error) {
	if len(keepVINs) == 0 {
		return nil, store.Internal("vehicles.VINsNotIn", errEmptyKeepSet)
	}
	rows, err := s.db.Query(ctx, `
		SELECT vin FROM vehicles
		WHERE dealership_id = $1 AND vin IS NOT NULL AND NOT (vin = ANY($2))`, dealershipID, keepVINs)
	if err != nil {
		return nil, store.Internal("vehicles.VINsNotIn", err)
	}
	defer rows.Close()

	var vins []string
	for rows.Next() {
		var vin string
		if err := rows.Scan(&vin); err != nil {
			return nil, store.Internal("vehicles.VINsNotIn.scan", err)
		}
		vins = append(vins, vin)
	}
	return vins, nil
}

// DeleteByVINNotIn is the bulk delete-subtract primitive behind
// /import/sync. It refuses an empty keepVINs unconditionally —
// the Store enforces this invariant independently of the API-layer gate
// (spec.md §4.1, §4.4, §8 invariant 3).
func (s *VehicleStore) DeleteByVINNotIn(ctx context.Context, dealershipID int64, keepVINs []string) (int64, []string, error) {
	if len(keepVINs) == 0 {
		return 0, nil, store.Internal("vehicles.DeleteByVINNotIn", errEmptyKeepSet)
	}

	rows, err := s.db.Query(ctx, `
		DELETE FROM vehicles
		WHERE dealership_id = $1 AND vin IS NOT NULL AND NOT (vin = ANY($2))
		RETURNING vin`, dealershipID, keepVINs)
	if err != nil {
		return 0, nil, store.Internal("vehicles.DeleteByVINNotIn", err)
	}
	defer rows.Close()

	var deletedVINs []string
	for rows.Next() {
		var vin string
		if err := rows.Scan(&vin); err != nil {
			return 0, nil, store.Internal("vehicles.DeleteByVINNotIn.scan", err)
		}
		deletedVINs = append(deletedVINs, vin)
	}
	return int64(len(deletedVINs)), deletedVINs, nil
}

var errEmptyKeepSet = errors.New("refusing to delete-subtract with an empty keep set")

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
