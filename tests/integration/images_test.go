package integration

import (
	"bytes"
	"context"
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

// fakeFetcher always succeeds, returning a fixed JPEG payload.
type fakeFetcher struct{}

func (fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	return []byte("fake-image-bytes"), "image/jpeg", nil
}

// fakeBlob records what it's given and returns a deterministic URL.
type fakeBlob struct{}

func (fakeBlob) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	return "https://blob.test/" + key, nil
}

func testImageHandler(t *testing.T) (*handler.ImageHandler, *middleware.TenantAuth, int64, string) {
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

	imageHandler := handler.NewImageHandler(stores, fakeFetcher{}, fakeBlob{}, logger)
	return imageHandler, tenantAuth, dealershipID, subdomain
}

func TestAddImage(t *testing.T) {
	imageHandler, tenantAuth, dealershipID, subdomain := testImageHandler(t)
	db := fixtures.SetupTestDBWithMigrations(t)
	vehicleID := fixtures.TestVehicle(t, db, dealershipID)

	r := chi.NewRouter()
	r.With(tenantAuth.Middleware).Post("/api/vehicles/{id}/images", imageHandler.AddImage)

	body := map[string]interface{}{"urls": []string{"https://example.com/a.jpg"}}
	bodyBytes, _ := json.Marshal(body)

	req := httptest.NewRequest("POST", "/api/vehicles/"+strconv.FormatInt(vehicleID, 10)+"/images", bytes.NewReader(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	req.Host = subdomain + ".dealerops.example.com"
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	images := resp["images"].([]interface{})
	require.Len(t, images, 1)
	assert.Contains(t, images[0].(string), "https://blob.test/")
}

func TestAddImage_MissingURLs(t *testing.T) {
	imageHandler, tenantAuth, dealershipID, subdomain := testImageHandler(t)
	db := fixtures.SetupTestDBWithMigrations(t)
	vehicleID := fixtures.TestVehicle(t, db, dealershipID)

	r := chi.NewRouter()
	r.With(tenantAuth.Middleware).Post("/api/vehicles/{id}/images", imageHandler.AddImage)

	bodyBytes, _ := json.Marshal(map[string]interface{}{"urls": []string{}})

	req := httptest.NewRequest("POST", "/api/vehicles/"+strconv.FormatInt(vehicleID, 10)+"/images", bytes.NewReader(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	req.Host = subdomain + ".dealerops.example.com"
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddImage_VehicleNotFound(t *testing.T) {
	imageHandler, tenantAuth, _, subdomain := testImageHandler(t)

	r := chi.NewRouter()
	r.With(tenantAuth.Middleware).Post("/api/vehicles/{id}/images", imageHandler.AddImage)

	bodyBytes, _ := json.Marshal(map[string]interface{}{"urls": []string{"https://example.com/a.jpg"}})

	req := httptest.NewRequest("POST", "/api/vehicles/99999/images", bytes.NewReader(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	req.Host = subdomain + ".dealerops.example.com"
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteImage(t *testing.T) {
	imageHandler, tenantAuth, dealershipID, subdomain := testImageHandler(t)
	db := fixtures.SetupTestDBWithMigrations(t)
	vehicleID := fixtures.TestVehicle(t, db, dealershipID)

	_, err := db.Exec(t.Context(), `UPDATE vehicles SET images = ARRAY['https://example.com/a.jpg','https://example.com/b.jpg'] WHERE id = $1`, vehicleID)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.With(tenantAuth.Middleware).Delete("/api/vehicles/{id}/images/{imageId}", imageHandler.DeleteImage)

	req := httptest.NewRequest("DELETE", "/api/vehicles/"+strconv.FormatInt(vehicleID, 10)+"/images/0", nil)
	req.Host = subdomain + ".dealerops.example.com"
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	images := resp["images"].([]interface{})
	require.Len(t, images, 1)
	assert.Equal(t, "https://example.com/b.jpg", images[0])
}

func TestDeleteImage_IndexOutOfRange(t *testing.T) {
	imageHandler, tenantAuth, dealershipID, subdomain := testImageHandler(t)
	db := fixtures.SetupTestDBWithMigrations(t)
	vehicleID := fixtures.TestVehicle(t, db, dealershipID)

	r := chi.NewRouter()
	r.With(tenantAuth.Middleware).Delete("/api/vehicles/{id}/images/{imageId}", imageHandler.DeleteImage)

	req := httptest.NewRequest("DELETE", "/api/vehicles/"+strconv.FormatInt(vehicleID, 10)+"/images/0", nil)
	req.Host = subdomain + ".dealerops.example.com"
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
