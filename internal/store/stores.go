// Package store defines the Store operations every component uses to
// read and write durable state. Nothing outside this package (and its
// pg subpackage) ever sees a SQL row — callers get typed entities.
//
// Four patterns recur (spec.md §4.1): tenant-scoped fetch (returns
// ErrNotFound rather than forbidden, so cross-tenant lookups are
// indistinguishable from absence), paginated listing, upsert-by-natural-
// key, and bulk delete-subtract.
package store

import (
	"context"
	"time"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
)

// Page bounds a listing query. An explicit Limit is capped at 100; a
// zero or negative Limit means "everything", up to 10000 rows in one
// shot (spec.md §4.1).
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies the spec.md §4.1 caps and defaults.
func (p Page) Normalize() Page {
	out := p
	if out.Offset < 0 {
		out.Offset = 0
	}
	switch {
	case out.Limit <= 0:
		out.Limit = 10000
	case out.Limit > 100:
		out.Limit = 100
	}
	return out
}

type Paginated[T any] struct {
	Items []T
	Total int64
}

type VehicleFilter struct {
	Make   string
	Model  string
	Status string // carried from the request; the pg VehicleStore does not filter on it
}

// DealershipStore resolves tenants by the identifiers in spec.md §4.2's
// resolution chain (slug, subdomain, numeric ID).
type DealershipStore interface {
	GetByID(ctx context.Context, id int64) (domain.Dealership, error)
	GetBySubdomain(ctx context.Context, subdomain string) (domain.Dealership, error)
	GetBySlug(ctx context.Context, slug string) (domain.Dealership, error)
	Create(ctx context.Context, d domain.Dealership) (domain.Dealership, error)
	// ListActive backs the scheduler's per-dealership cadence sweep
	// (spec.md §4.4).
	ListActive(ctx context.Context) ([]domain.Dealership, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	Create(ctx context.Context, u domain.User) (domain.User, error)
	UpdateProfile(ctx context.Context, id int64, name string) error
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	List(ctx context.Context, dealershipID int64, page Page) (Paginated[domain.User], error)
}

// TokenStore manages ExternalApiToken rows. Lookup is always prefix-
// first: the caller extracts the indexed prefix, fetches candidates,
// then bcrypt-compares the raw token against each (spec.md §3).
type TokenStore interface {
	Create(ctx context.Context, t domain.ExternalApiToken) (domain.ExternalApiToken, error)
	CandidatesByPrefix(ctx context.Context, prefix string) ([]domain.ExternalApiToken, error)
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error
	Revoke(ctx context.Context, id int64, dealershipID int64) error
}

type VehicleStore interface {
	Get(ctx context.Context, id int64, dealershipID int64) (domain.Vehicle, error)
	GetByVIN(ctx context.Context, vin string, dealershipID int64) (domain.Vehicle, error)
	List(ctx context.Context, dealershipID int64, filter VehicleFilter, page Page) (Paginated[domain.Vehicle], error)
	Create(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error)
	Update(ctx context.Context, v domain.Vehicle) error
	Delete(ctx context.Context, id int64, dealershipID int64) error
	CountActive(ctx context.Context, dealershipID int64) (int64, error)
	// VINsNotIn previews the set-difference delete without mutating —
	// backs dryRun on /import/sync.
	VINsNotIn(ctx context.Context, dealershipID int64, keepVINs []string) ([]string, error)
	// DeleteByVINNotIn is the bulk delete-subtract safety-gated primitive
	// (spec.md §4.1, §4.4). It refuses an empty keepVINs unconditionally.
	DeleteByVINNotIn(ctx context.Context, dealershipID int64, keepVINs []string) (deletedCount int64, deletedVINs []string, err error)
}

type ConversationStore interface {
	Get(ctx context.Context, id int64, dealershipID int64) (domain.Conversation, error)
	GetOrCreate(ctx context.Context, dealershipID int64, channel domain.Channel, participantID string) (domain.Conversation, bool, error)
	UpdateLastMessage(ctx context.Context, id int64, lastMessage string, at time.Time) error
	UpdateHandoff(ctx context.Context, id int64, name, phone, email string) error
	SetGHLContactID(ctx context.Context, id int64, ghlContactID string) error
	SetAI(ctx context.Context, id int64, dealershipID int64, enabled, watchMode bool) error
	UpdateMetadata(ctx context.Context, id int64, dealershipID int64, leadStatus, pipelineStage string, tags []string) error
	List(ctx context.Context, dealershipID int64, channel domain.Channel, page Page) (Paginated[domain.Conversation], error)
}

type MessageStore interface {
	// FindDuplicate implements the dedup key from spec.md §3: a match on
	// either (dealershipID, externalMessageID) or (dealershipID,
	// ghlMessageID) means duplicate.
	FindDuplicate(ctx context.Context, dealershipID int64, externalMessageID, ghlMessageID string) (domain.Message, bool, error)
	Insert(ctx context.Context, m domain.Message) (domain.Message, error)
	SetGHLMessageID(ctx context.Context, id int64, ghlMessageID string) error
	RecentByConversation(ctx context.Context, conversationID int64, dealershipID int64, limit int) ([]domain.Message, error)
	RecentUserAuthored(ctx context.Context, conversationID int64, dealershipID int64, limit int) ([]domain.Message, error)
}

type PostingQueueStore interface {
	Enqueue(ctx context.Context, item domain.PostingQueueItem) (domain.PostingQueueItem, error)
	NextReady(ctx context.Context, dealershipID int64, limit int) ([]domain.PostingQueueItem, error)
	MarkStatus(ctx context.Context, id int64, status domain.PostingStatus, lastError string) error
	MarkPosted(ctx context.Context, id int64, externalListingID string, postedAt time.Time) error
	IncrementAttempt(ctx context.Context, id int64) error
}

// PostingTokenStore mints and validates one-time posting tokens
// (spec.md §4.5). Validate-and-consume must be atomic: two concurrent
// validations of the same token must not both succeed.
type PostingTokenStore interface {
	Mint(ctx context.Context, t domain.PostingToken) (domain.PostingToken, error)
	ValidateAndConsume(ctx context.Context, token string) (domain.PostingToken, error)
	// CountSuccessfulToday supports the server-side daily cap check at
	// token-mint time (spec.md §4.5, §5).
	CountSuccessfulToday(ctx context.Context, dealershipID, userID int64, day time.Time) (int64, error)
}

type ListingStore interface {
	Upsert(ctx context.Context, l domain.Listing) (domain.Listing, error)
}

type ScrapeRunStore interface {
	Start(ctx context.Context, r domain.ScrapeRun) (domain.ScrapeRun, error)
	Finish(ctx context.Context, id int64, r domain.ScrapeRun) error
	List(ctx context.Context, dealershipID int64, page Page) (Paginated[domain.ScrapeRun], error)
}

type AuditLogStore interface {
	Write(ctx context.Context, a domain.AuditLog) error
}

type ImpersonationStore interface {
	GetActive(ctx context.Context, superAdminID int64) (domain.ImpersonationSession, bool, error)
	Start(ctx context.Context, s domain.ImpersonationSession) (domain.ImpersonationSession, error)
	End(ctx context.Context, id int64, endedAt time.Time) error
	IncrementActions(ctx context.Context, id int64) error
}

type SettingsStore interface {
	Get(ctx context.Context, dealershipID int64) (domain.DealershipSettings, error)
	Upsert(ctx context.Context, s domain.DealershipSettings) error
	// FindByCRMLocationID resolves the tenant owning a CRM-linked
	// account, the first of the two tables the inbound webhook path
	// checks (spec.md §4.3).
	FindByCRMLocationID(ctx context.Context, locationID string) (domain.DealershipSettings, error)
}

type ApiLogStore interface {
	Write(ctx context.Context, a domain.ApiLog) error
}

type PasswordResetStore interface {
	// Create stores a bcrypt-hashed reset token with a one-hour TTL,
	// single-use (spec.md §4.2).
	Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (int64, error)
	// Unexpired returns recent unexpired, unused rows; the caller
	// iterates them and bcrypt-compares. Unlike ExternalApiToken lookup
	// there is no indexed prefix to narrow the candidates.
	Unexpired(ctx context.Context, since time.Time) ([]PasswordResetRow, error)
	MarkUsed(ctx context.Context, id int64) error
}

type PasswordResetRow struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Stores aggregates every store interface so the rest of the service can
// take a single handle, following the teacher's store.Stores bundle
// pattern (generalized from vanducng-goclaw's internal/store/stores.go).
type Stores struct {
	Dealerships   DealershipStore
	Users         UserStore
	Tokens        TokenStore
	Vehicles      VehicleStore
	Conversations ConversationStore
	Messages      MessageStore
	Postings      PostingQueueStore
	PostingTokens PostingTokenStore
	Listings      ListingStore
	ScrapeRuns    ScrapeRunStore
	AuditLogs     AuditLogStore
	Impersonation ImpersonationStore
	Settings      SettingsStore
	ApiLogs       ApiLogStore
	PasswordResets PasswordResetStore
}
