package integration

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/handler"
	"github.com/ayubfarah/dealer-ops-core/internal/middleware"
	"github.com/ayubfarah/dealer-ops-core/internal/store/pg"
	"github.com/ayubfarah/dealer-ops-core/internal/tenant"
	"github.com/ayubfarah/dealer-ops-core/tests/fixtures"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
}

const testJWTSecret = "test-secret"

func testAuthHandler(t *testing.T) (*handler.AuthHandler, *tenant.JWTIssuer, *middleware.TenantAuth, int64) {
	t.Helper()
	db := fixtures.SetupTestDBWithMigrations(t)
	stores := pg.NewStores(db)
	dealershipID := fixtures.TestDealership(t, db)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	jwt := tenant.NewJWTIssuer(testJWTSecret, time.Hour)
	impersonation := tenant.NewImpersonationService(stores, jwt, clock.Real{})
	passwordResets := tenant.NewPasswordResetService(stores, clock.Real{}, bcrypt.MinCost)
	resolver := tenant.NewResolver(stores, jwt, clock.Real{})
	tenantAuth := middleware.NewTenantAuth(resolver, "dealerops.example.com", false)

	authHandler := handler.NewAuthHandler(stores, jwt, impersonation, passwordResets, bcrypt.MinCost, logger)
	return authHandler, jwt, tenantAuth, dealershipID
}

func TestLogin_ValidCredentials(t *testing.T) {
	authHandler, _, _, dealershipID := testAuthHandler(t)
	db := fixtures.SetupTestDBWithMigrations(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pw"), bcrypt.MinCost)
	require.NoError(t, err)

	_, err = db.Exec(t.Context(), `
		INSERT INTO users (dealership_id, email, password_hash, name, role)
		VALUES ($1, $2, $3, 'Login Test', 'manager')
	`, dealershipID, "login@example.com", string(hash))
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"email": "login@example.com", "password": "s3cret-pw"})
	req := httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	authHandler.Login(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
	user := resp["user"].(map[string]interface{})
	assert.Equal(t, "login@example.com", user["email"])
}

func TestLogin_WrongPassword(t *testing.T) {
	authHandler, _, _, dealershipID := testAuthHandler(t)
	db := fixtures.SetupTestDBWithMigrations(t)

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-pw"), bcrypt.MinCost)
	_, err := db.Exec(t.Context(), `
		INSERT INTO users (dealership_id, email, password_hash, name, role)
		VALUES ($1, $2, $3, 'Wrong PW', 'manager')
	`, dealershipID, "wrongpw@example.com", string(hash))
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"email": "wrongpw@example.com", "password": "nope"})
	req := httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	authHandler.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_Authenticated(t *testing.T) {
	authHandler, jwt, tenantAuth, dealershipID := testAuthHandler(t)
	db := fixtures.SetupTestDBWithMigrations(t)

	var userID int64
	err := db.QueryRow(t.Context(), `
		INSERT INTO users (dealership_id, email, password_hash, name, role)
		VALUES ($1, 'me@example.com', 'x', 'Test User', 'manager')
		RETURNING id
	`, dealershipID).Scan(&userID)
	require.NoError(t, err)

	token, err := jwt.Issue(domain.User{ID: userID, Email: "me@example.com", Name: "Test User", Role: domain.RoleManager, DealershipID: &dealershipID}, tenant.KindSession)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	tenantAuth.Middleware(http.HandlerFunc(authHandler.Me)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "me@example.com", resp["email"])
}

func TestMe_Unauthenticated(t *testing.T) {
	authHandler, _, tenantAuth, _ := testAuthHandler(t)

	req := httptest.NewRequest("GET", "/auth/me", nil)
	rec := httptest.NewRecorder()

	tenantAuth.Middleware(http.HandlerFunc(authHandler.Me)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
