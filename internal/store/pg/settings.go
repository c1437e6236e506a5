package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

type SettingsStore struct {
	db *pgxpool.Pool
}

func NewSettingsStore(db *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{db: db}
}

const settingsCols = `dealership_id, scrape_webhook_secret, extension_hmac_key, posting_daily_cap,
	scheduler_cadence_cron, ai_temperature, ai_max_tokens, ai_reply_length_cap, ai_model,
	crm_location_id, crm_api_key_encrypted, scraper_source_urls`

func scanSettings(row pgx.Row) (domain.DealershipSettings, error) {
	var s domain.DealershipSettings
	err := row.Scan(&s.DealershipID, &s.ScrapeWebhookSecret, &s.ExtensionHMACKey, &s.PostingDailyCap,
		&s.SchedulerCadenceCron, &s.AITemperature, &s.AIMaxTokens, &s.AIReplyLengthCap, &s.AIModel,
		&s.CRMLocationID, &s.CRMAPIKeyEncrypted, &s.ScraperSourceURLs)
	return s, err
}

// Get returns the default row (posting_daily Cap 10, cron "0 2 * * *")
// when a dealership has never customized its settings.
func (s *SettingsStore) Get(ctx context.Context, dealershipID int64) (domain.DealershipSettings, error) {
	row := s.db.QueryRow(ctx, `SELECT `+settingsCols+` FROM dealership_settings WHERE dealership_id = $1`, dealershipID)
	out, err := scanSettings(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DealershipSettings{
			DealershipID:         dealershipID,
			PostingDailyCap:      10,
			SchedulerCadenceCron: "0 2 * * *",
			AITemperature:        0.7,
			AIMaxTokens:          400,
			AIReplyLengthCap:     600,
			AIModel:              "gpt-4o-mini",
		}, nil
	}
	if err != nil {
		return domain.DealershipSettings{}, store.Internal("settings.Get", err)
	}
	return out, nil
}

func (s *SettingsStore) FindByCRMLocationID(ctx context.Context, locationID string) (domain.DealershipSettings, error) {
	row := s.db.QueryRow(ctx, `SELECT `+settingsCols+` FROM dealership_settings WHERE crm_location_id = $1`, locationID)
	out, err := scanSettings(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DealershipSettings{}, store.ErrNotFound
	}
	if err != nil {
		return domain.DealershipSettings{}, store.Internal("settings.FindByCRMLocationID", err)
	}
	return out, nil
}

func (s *SettingsStore) Upsert(ctx context.Context, set domain.DealershipSettings) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO dealership_settings (dealership_id, scrape_webhook_secret, extension_hmac_key,
			posting_daily_cap, scheduler_cadence_cron, ai_temperature, ai_max_tokens, ai_reply_length_cap,
			ai_model, crm_location_id, crm_api_key_encrypted, scraper_source_urls)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (dealership_id) DO UPDATE SET
			scrape_webhook_secret = EXCLUDED.scrape_webhook_secret,
			extension_hmac_key = EXCLUDED.extension_hmac_key,
			posting_daily_cap = EXCLUDED.posting_daily_cap,
			scheduler_cadence_cron = EXCLUDED.scheduler_cadence_cron,
			ai_temperature = EXCLUDED.ai_temperature,
			ai_max_tokens = EXCLUDED.ai_max_tokens,
			ai_reply_length_cap = EXCLUDED.ai_reply_length_cap,
			ai_model = EXCLUDED.ai_model,
			crm_location_id = EXCLUDED.crm_location_id,
			crm_api_key_encrypted = EXCLUDED.crm_api_key_encrypted,
			scraper_source_urls = EXCLUDED.scraper_source_urls`,
		set.DealershipID, set.ScrapeWebhookSecret, set.ExtensionHMACKey, set.PostingDailyCap,
		set.SchedulerCadenceCron, set.AITemperature, set.AIMaxTokens, set.AIReplyLengthCap, set.AIModel,
		set.CRMLocationID, set.CRMAPIKeyEncrypted, set.ScraperSourceURLs)
	if err != nil {
		return store.Internal("settings.Upsert", err)
	}
	return nil
}
