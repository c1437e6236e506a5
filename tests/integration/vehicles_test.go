package integration

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/handler"
	"github.com/ayubfarah/dealer-ops-core/internal/middleware"
	"github.com/ayubfarah/dealer-ops-core/internal/store/pg"
	"github.com/ayubfarah/dealer-ops-core/internal/tenant"
	"github.com/ayubfarah/dealer-ops-core/tests/fixtures"
)

// testVehicleHandler wires a VehicleHandler behind the real tenant
// resolver, resolving via subdomain so dealership scoping is enforced
// the same way it is in production.
func testVehicleHandler(t *testing.T) (*handler.VehicleHandler, *middleware.TenantAuth, int64, string) {
	t.Helper()
	db := fixtures.SetupTestDBWithMigrations(t)
	stores := pg.NewStores(db)
	dealershipID := fixtures.TestDealership(t, db)

	var subdomain string
	err := db.QueryRow(t.Context(), `SELECT subdomain FROM dealerships WHERE id = $1`, dealershipID).Scan(&subdomain)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	jwt := tenant.NewJWTIssuer("test-secret", time.Hour)
	resolver := tenant.NewResolver(stores, jwt, clock.Real{})
	tenantAuth := middleware.NewTenantAuth(resolver, "dealerops.example.com", true)

	vehicleHandler := handler.NewVehicleHandler(stores, logger)
	return vehicleHandler, tenantAuth, dealershipID, subdomain
}

func withTenantHost(req *http.Request, subdomain string) *http.Request {
	req.Host = subdomain + ".dealerops.example.com"
	return req
}

func TestListVehiclesEmpty(t *testing.T) {
	vehicleHandler, tenantAuth, _, subdomain := testVehicleHandler(t)

	req := withTenantHost(httptest.NewRequest("GET", "/api/vehicles", nil), subdomain)
	rec := httptest.NewRecorder()

	tenantAuth.Middleware(http.HandlerFunc(vehicleHandler.ListVehicles)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "items")
	assert.Contains(t, resp, "total")
	assert.Equal(t, float64(0), resp["total"])
}

func TestListVehiclesWithData(t *testing.T) {
	vehicleHandler, tenantAuth, dealershipID, subdomain := testVehicleHandler(t)
	db := fixtures.SetupTestDBWithMigrations(t)

	fixtures.TestVehicle(t, db, dealershipID)
	fixtures.TestVehicleWithDetails(t, db, dealershipID, 2022, "Toyota", "Camry", 20000)

	req := withTenantHost(httptest.NewRequest("GET", "/api/vehicles", nil), subdomain)
	rec := httptest.NewRecorder()

	tenantAuth.Middleware(http.HandlerFunc(vehicleHandler.ListVehicles)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	items := resp["items"].([]interface{})
	assert.Len(t, items, 2)
}

func TestListVehiclesFilterByMake(t *testing.T) {
	vehicleHandler, tenantAuth, dealershipID, subdomain := testVehicleHandler(t)
	db := fixtures.SetupTestDBWithMigrations(t)

	fixtures.TestVehicle(t, db, dealershipID)                                          // Honda Accord
	fixtures.TestVehicleWithDetails(t, db, dealershipID, 2022, "Toyota", "Camry", 20000) // Toyota

	req := withTenantHost(httptest.NewRequest("GET", "/api/vehicles?make=Honda", nil), subdomain)
	rec := httptest.NewRecorder()

	tenantAuth.Middleware(http.HandlerFunc(vehicleHandler.ListVehicles)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	items := resp["items"].([]interface{})
	require.Len(t, items, 1)

	vehicle := items[0].(map[string]interface{})
	assert.Equal(t, "Honda", vehicle["make"])
}

func TestGetVehicle(t *testing.T) {
	vehicleHandler, tenantAuth, dealershipID, subdomain := testVehicleHandler(t)
	db := fixtures.SetupTestDBWithMigrations(t)

	vehicleID := fixtures.TestVehicle(t, db, dealershipID)

	r := chi.NewRouter()
	r.With(tenantAuth.Middleware).Get("/api/vehicles/{id}", vehicleHandler.GetVehicle)

	req := withTenantHost(httptest.NewRequest("GET", "/api/vehicles/"+itoa(vehicleID), nil), subdomain)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var vehicle map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vehicle))
	assert.Equal(t, "Honda", vehicle["make"])
	assert.Equal(t, "Accord", vehicle["model"])
}

func TestGetVehicleNotFound(t *testing.T) {
	vehicleHandler, tenantAuth, _, subdomain := testVehicleHandler(t)

	r := chi.NewRouter()
	r.With(tenantAuth.Middleware).Get("/api/vehicles/{id}", vehicleHandler.GetVehicle)

	req := withTenantHost(httptest.NewRequest("GET", "/api/vehicles/99999", nil), subdomain)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetVehicleCrossTenantIsNotFound(t *testing.T) {
	vehicleHandler, tenantAuth, _, subdomain := testVehicleHandler(t)
	db := fixtures.SetupTestDBWithMigrations(t)

	otherDealershipID := fixtures.TestDealership(t, db)
	otherVehicleID := fixtures.TestVehicle(t, db, otherDealershipID)

	r := chi.NewRouter()
	r.With(tenantAuth.Middleware).Get("/api/vehicles/{id}", vehicleHandler.GetVehicle)

	req := withTenantHost(httptest.NewRequest("GET", "/api/vehicles/"+itoa(otherVehicleID), nil), subdomain)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListVehiclesPagination(t *testing.T) {
	vehicleHandler, tenantAuth, dealershipID, subdomain := testVehicleHandler(t)
	db := fixtures.SetupTestDBWithMigrations(t)

	for i := 0; i < 5; i++ {
		fixtures.TestVehicleWithDetails(t, db, dealershipID, 2020+i, "Test", "Model", float64(10000+i*1000))
	}

	req := withTenantHost(httptest.NewRequest("GET", "/api/vehicles?limit=2", nil), subdomain)
	rec := httptest.NewRecorder()
	tenantAuth.Middleware(http.HandlerFunc(vehicleHandler.ListVehicles)).ServeHTTP(rec, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	items := resp["items"].([]interface{})
	assert.Len(t, items, 2)
	assert.Equal(t, float64(5), resp["total"])

	req = withTenantHost(httptest.NewRequest("GET", "/api/vehicles?limit=2&offset=2", nil), subdomain)
	rec = httptest.NewRecorder()
	tenantAuth.Middleware(http.HandlerFunc(vehicleHandler.ListVehicles)).ServeHTTP(rec, req)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	items = resp["items"].([]interface{})
	assert.Len(t, items, 2)
}

func itoa(i int64) string {
	return strconv.FormatInt(i, 10)
}
