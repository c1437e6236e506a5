package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/middleware"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

// TenancyHandler covers the super_admin/admin-facing dealership, user
// and external-API-token management endpoints of spec.md §4.2 — the
// provisioning surface sitting above the request-time resolution chain
// that tenant.Resolver runs.
type TenancyHandler struct {
	stores     *store.Stores
	bcryptCost int
	logger     *slog.Logger
}

func NewTenancyHandler(stores *store.Stores, bcryptCost int, logger *slog.Logger) *TenancyHandler {
	return &TenancyHandler{stores: stores, bcryptCost: bcryptCost, logger: logger}
}

type createDealershipRequest struct {
	Slug        string `json:"slug"`
	Subdomain   string `json:"subdomain"`
	DisplayName string `json:"displayName"`
}

// CreateDealership is a super_admin-only endpoint (gated by
// middleware.RequireRole(domain.RoleSuperAdmin) at the route level).
func (h *TenancyHandler) CreateDealership(w http.ResponseWriter, r *http.Request) {
	var req createDealershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}
	if req.Slug == "" || req.Subdomain == "" || req.DisplayName == "" {
		writeError(w, apperr.Input("slug, subdomain and displayName are required"))
		return
	}

	created, err := h.stores.Dealerships.Create(r.Context(), domain.Dealership{
		Slug:        req.Slug,
		Subdomain:   req.Subdomain,
		DisplayName: req.DisplayName,
		IsActive:    true,
	})
	if err != nil {
		writeError(w, apperr.Internal("tenancy.CreateDealership", err))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Me returns the dealership resolved for the current request.
func (h *TenancyHandler) Me(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("no dealership resolved for this request"))
		return
	}
	writeJSON(w, http.StatusOK, dealership)
}

type createUserRequest struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	DealershipID *int64 `json:"dealershipId,omitempty"`
}

// CreateUser is gated to at least RoleAdmin at the route level; an
// admin may only create users within their own dealership, enforced
// here rather than in middleware since it depends on the request body.
func (h *TenancyHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())
	if caller == nil {
		writeError(w, apperr.Auth("authentication required"))
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}
	if req.Email == "" || req.Name == "" || len(req.Password) < 8 {
		writeError(w, apperr.Input("email, name and an 8+ character password are required"))
		return
	}

	role := domain.Role(req.Role)
	if caller.Role != domain.RoleSuperAdmin {
		if req.DealershipID == nil || caller.DealershipID == nil || *req.DealershipID != *caller.DealershipID {
			writeError(w, apperr.Forbidden("cannot create users outside your own dealership"))
			return
		}
		if role.Rank() >= caller.Role.Rank() {
			writeError(w, apperr.Forbidden("cannot create a user with an equal or higher role"))
			return
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		writeError(w, apperr.Internal("tenancy.CreateUser.hash", err))
		return
	}

	created, err := h.stores.Users.Create(r.Context(), domain.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		Role:         role,
		DealershipID: req.DealershipID,
		IsActive:     true,
	})
	if err != nil {
		writeError(w, apperr.Internal("tenancy.CreateUser", err))
		return
	}
	writeJSON(w, http.StatusCreated, toUserPayload(created))
}

func (h *TenancyHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	page := parsePage(r)
	result, err := h.stores.Users.List(r.Context(), dealership.ID, page)
	if err != nil {
		writeError(w, apperr.Internal("tenancy.ListUsers", err))
		return
	}

	payload := make([]userPayload, 0, len(result.Items))
	for _, u := range result.Items {
		payload = append(payload, toUserPayload(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": payload, "total": result.Total})
}

const apiTokenRandomBytes = 24
const apiTokenPrefixChars = 12

type createAPITokenRequest struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

type createAPITokenResponse struct {
	Token string              `json:"token"`
	ID    int64               `json:"id"`
	Name  string              `json:"name"`
	Caps  []domain.Capability `json:"capabilities"`
}

// CreateAPIToken mints a token whose raw value is shown exactly once;
// only its bcrypt hash and indexed prefix are persisted (spec.md §3,
// §4.2's byAPIToken resolution leg).
func (h *TenancyHandler) CreateAPIToken(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	var req createAPITokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}
	if req.Name == "" {
		writeError(w, apperr.InputField("name", "name is required"))
		return
	}

	caps := make([]domain.Capability, 0, len(req.Capabilities))
	for _, c := range req.Capabilities {
		caps = append(caps, domain.Capability(c))
	}

	raw := make([]byte, apiTokenRandomBytes)
	if _, err := rand.Read(raw); err != nil {
		writeError(w, apperr.Internal("tenancy.CreateAPIToken.random", err))
		return
	}
	rawToken := "oag_" + hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(rawToken), h.bcryptCost)
	if err != nil {
		writeError(w, apperr.Internal("tenancy.CreateAPIToken.hash", err))
		return
	}

	prefix := rawToken
	if len(prefix) > apiTokenPrefixChars {
		prefix = prefix[:apiTokenPrefixChars]
	}

	created, err := h.stores.Tokens.Create(r.Context(), domain.ExternalApiToken{
		DealershipID: dealership.ID,
		TokenName:    req.Name,
		TokenHash:    string(hash),
		TokenPrefix:  prefix,
		Permissions:  caps,
		IsActive:     true,
	})
	if err != nil {
		writeError(w, apperr.Internal("tenancy.CreateAPIToken", err))
		return
	}

	writeJSON(w, http.StatusCreated, createAPITokenResponse{
		Token: rawToken,
		ID:    created.ID,
		Name:  created.TokenName,
		Caps:  created.Permissions,
	})
}

func (h *TenancyHandler) RevokeAPIToken(w http.ResponseWriter, r *http.Request) {
	dealership := middleware.DealershipFromContext(r.Context())
	if dealership == nil {
		writeError(w, apperr.Input("dealership-required"))
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperr.Input("invalid token id"))
		return
	}

	if err := h.stores.Tokens.Revoke(r.Context(), id, dealership.ID); err != nil {
		writeError(w, apperr.Internal("tenancy.RevokeAPIToken", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

func parsePage(r *http.Request) store.Page {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return store.Page{Limit: limit, Offset: offset}.Normalize()
}
