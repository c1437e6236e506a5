// Package pg implements the store interfaces against PostgreSQL via
// pgxpool, following the teacher's raw-SQL-over-pgxpool convention
// (no ORM, no codegen).
package pg

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

// NewStores wires every pg.*Store implementation into one store.Stores
// bundle, mirroring the teacher's NewPGStores factory.
func NewStores(db *pgxpool.Pool) *store.Stores {
	return &store.Stores{
		Dealerships:    NewDealershipStore(db),
		Users:          NewUserStore(db),
		Tokens:         NewTokenStore(db),
		Vehicles:       NewVehicleStore(db),
		Conversations:  NewConversationStore(db),
		Messages:       NewMessageStore(db),
		Postings:       NewPostingQueueStore(db),
		PostingTokens:  NewPostingTokenStore(db),
		Listings:       NewListingStore(db),
		ScrapeRuns:     NewScrapeRunStore(db),
		AuditLogs:      NewAuditLogStore(db),
		Impersonation:  NewImpersonationStore(db),
		Settings:       NewSettingsStore(db),
		ApiLogs:        NewApiLogStore(db),
		PasswordResets: NewPasswordResetStore(db),
	}
}
