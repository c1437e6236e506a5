package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/middleware"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
	"github.com/ayubfarah/dealer-ops-core/internal/tenant"
)

// AuthHandler replaces the teacher's Clerk-backed AuthHandler with a
// password/session flow: credentials are verified against the users
// table rather than delegated to a third-party identity provider, and
// sessions are self-issued JWTs (tenant.JWTIssuer) instead of verified
// third-party ones.
type AuthHandler struct {
	stores         *store.Stores
	jwt            *tenant.JWTIssuer
	impersonation  *tenant.ImpersonationService
	passwordResets *tenant.PasswordResetService
	bcryptCost     int
	logger         *slog.Logger
}

func NewAuthHandler(stores *store.Stores, jwt *tenant.JWTIssuer, impersonation *tenant.ImpersonationService, passwordResets *tenant.PasswordResetService, bcryptCost int, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		stores:         stores,
		jwt:            jwt,
		impersonation:  impersonation,
		passwordResets: passwordResets,
		bcryptCost:     bcryptCost,
		logger:         logger,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

type userPayload struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	DealershipID *int64 `json:"dealershipId,omitempty"`
}

func toUserPayload(u domain.User) userPayload {
	return userPayload{ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role), DealershipID: u.DealershipID}
}

// Login issues a session JWT (spec.md §4.2's byJWT precedence leg).
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.stores.Users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, apperr.Auth("invalid email or password"))
		return
	}
	if !user.IsActive {
		writeError(w, apperr.Auth("account disabled"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, apperr.Auth("invalid email or password"))
		return
	}

	token, err := h.jwt.Issue(user, tenant.KindSession)
	if err != nil {
		writeError(w, apperr.Internal("auth.Login.issue", err))
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Token: token, User: toUserPayload(user)})
}

// Me returns the resolved caller's identity.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeError(w, apperr.Auth("authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, toUserPayload(*user))
}

type updateProfileRequest struct {
	Name string `json:"name"`
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeError(w, apperr.Auth("authentication required"))
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}
	if req.Name == "" {
		writeError(w, apperr.InputField("name", "name is required"))
		return
	}

	if err := h.stores.Users.UpdateProfile(r.Context(), user.ID, req.Name); err != nil {
		writeError(w, apperr.Internal("auth.UpdateProfile", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

type requestPasswordResetRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset never reveals whether the email exists —
// tenant.PasswordResetService.Request is enumeration-resistant by
// construction. The raw token Request returns is discarded: this
// handler neither returns it nor sends it anywhere.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req requestPasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}
	if _, err := h.passwordResets.Request(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"requested": true})
}

type confirmPasswordResetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req confirmPasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}
	if len(req.Password) < 8 {
		writeError(w, apperr.InputField("password", "password must be at least 8 characters"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		writeError(w, apperr.Internal("auth.ConfirmPasswordReset.hash", err))
		return
	}
	if err := h.passwordResets.Consume(r.Context(), req.Token, string(hash)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

type impersonateRequest struct {
	TargetUserID int64 `json:"targetUserId"`
}

// Impersonate is the super_admin-only leg of spec.md §4.2; the route is
// additionally gated by middleware.RequireRole(domain.RoleSuperAdmin).
func (h *AuthHandler) Impersonate(w http.ResponseWriter, r *http.Request) {
	superAdmin := middleware.UserFromContext(r.Context())
	if superAdmin == nil {
		writeError(w, apperr.Auth("authentication required"))
		return
	}

	var req impersonateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Input("invalid request body"))
		return
	}

	target, err := h.stores.Users.GetByID(r.Context(), req.TargetUserID)
	if err != nil {
		writeError(w, apperr.NotFound("target user not found"))
		return
	}

	token, _, err := h.impersonation.Start(r.Context(), *superAdmin, target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, User: toUserPayload(target)})
}

func (h *AuthHandler) EndImpersonation(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil || claims.Kind != tenant.KindImpersonation {
		writeError(w, apperr.Input("no active impersonation session"))
		return
	}
	if err := h.impersonation.End(r.Context(), claims.ImpersonatorUserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ended": true})
}
