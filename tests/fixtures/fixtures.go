package fixtures

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// TestDealership creates an active dealership with a unique slug/subdomain.
func TestDealership(t *testing.T, db *pgxpool.Pool) int64 {
	t.Helper()
	ctx := context.Background()

	suffix := uuid.New().String()[:8]

	var dealershipID int64
	err := db.QueryRow(ctx, `
		INSERT INTO dealerships (slug, subdomain, display_name, is_active)
		VALUES ($1, $2, $3, true)
		RETURNING id
	`, "dealer-"+suffix, "dealer-"+suffix, "Test Dealership").Scan(&dealershipID)
	require.NoError(t, err)

	return dealershipID
}

// TestUser creates a user belonging to dealershipID with the given role.
func TestUser(t *testing.T, db *pgxpool.Pool, dealershipID int64, role string) int64 {
	t.Helper()
	ctx := context.Background()

	email := fmt.Sprintf("testuser-%s@example.com", uuid.New().String()[:8])
	// bcrypt hash of "password123" at cost 4 (fast, test-only).
	passwordHash := "$2a$04$CiC31G8jwEr2sB5d0z9X6.V6N7FQxY5hF0pV4m0L9e8bQeQeQeQeq"

	var userID int64
	err := db.QueryRow(ctx, `
		INSERT INTO users (dealership_id, email, password_hash, name, role)
		VALUES ($1, $2, $3, 'Test User', $4)
		RETURNING id
	`, dealershipID, email, passwordHash, role).Scan(&userID)
	require.NoError(t, err)

	return userID
}

// TestVehicle creates a vehicle for dealershipID with a unique VIN.
func TestVehicle(t *testing.T, db *pgxpool.Pool, dealershipID int64) int64 {
	t.Helper()
	ctx := context.Background()

	vin := fmt.Sprintf("1HGBH41JX%s", uuid.New().String()[:8])

	var vehicleID int64
	err := db.QueryRow(ctx, `
		INSERT INTO vehicles (dealership_id, vin, year, make, model, trim, price, odometer, stock_number)
		VALUES ($1, $2, 2021, 'Honda', 'Accord', 'Sport', 25000.00, 35000, $3)
		RETURNING id
	`, dealershipID, vin, fmt.Sprintf("STK-%s", uuid.New().String()[:6])).Scan(&vehicleID)
	require.NoError(t, err)

	return vehicleID
}

// TestVehicleWithDetails creates a vehicle with custom make/model/price.
func TestVehicleWithDetails(t *testing.T, db *pgxpool.Pool, dealershipID int64, year int, make, model string, price float64) int64 {
	t.Helper()
	ctx := context.Background()

	vin := fmt.Sprintf("1HGBH41JX%s", uuid.New().String()[:8])

	var vehicleID int64
	err := db.QueryRow(ctx, `
		INSERT INTO vehicles (dealership_id, vin, year, make, model, price, stock_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, dealershipID, vin, year, make, model, price, fmt.Sprintf("STK-%s", uuid.New().String()[:6])).Scan(&vehicleID)
	require.NoError(t, err)

	return vehicleID
}

// TestConversation creates a conversation on channel for dealershipID.
func TestConversation(t *testing.T, db *pgxpool.Pool, dealershipID int64, channel, participantID string) int64 {
	t.Helper()
	ctx := context.Background()

	var conversationID int64
	err := db.QueryRow(ctx, `
		INSERT INTO conversations (dealership_id, channel, participant_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`, dealershipID, channel, participantID).Scan(&conversationID)
	require.NoError(t, err)

	return conversationID
}

// CleanupTestData removes all test data (call in cleanup).
func CleanupTestData(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	tables := []string{
		"posting_tokens",
		"posting_queue",
		"listings",
		"messages",
		"conversations",
		"scrape_runs",
		"audit_logs",
		"impersonation_sessions",
		"password_resets",
		"api_logs",
		"external_api_tokens",
		"vehicles",
		"dealership_settings",
		"users",
		"dealerships",
	}

	for _, table := range tables {
		_, err := db.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			t.Logf("Warning: failed to truncate %s: %v", table, err)
		}
	}
}
