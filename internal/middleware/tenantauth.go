package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/tenant"
)

type tenantContextKey string

const (
	dealershipCtxKey tenantContextKey = "dealership"
	userCtxKey       tenantContextKey = "user"
	tokenCtxKey      tenantContextKey = "api_token"
	claimsCtxKey     tenantContextKey = "claims"
)

// TenantAuth runs the spec.md §4.2 resolution chain and, when it
// yields a dealership, stores it (and whichever of user/token
// authenticated the request) in context for downstream handlers and
// gates. requireDealership controls whether a route 400s when no
// dealership was resolved.
type TenantAuth struct {
	resolver          *tenant.Resolver
	publicZoneDomain  string
	requireDealership bool
}

func NewTenantAuth(resolver *tenant.Resolver, publicZoneDomain string, requireDealership bool) *TenantAuth {
	return &TenantAuth{resolver: resolver, publicZoneDomain: publicZoneDomain, requireDealership: requireDealership}
}

func (t *TenantAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		r.Body = io.NopCloser(bytes.NewReader(body))

		req := tenant.Request{
			AuthorizationHeader: r.Header.Get("Authorization"),
			ExtensionSignature:  r.Header.Get("X-Extension-Signature"),
			ExtensionTimestamp:  r.Header.Get("X-Extension-Timestamp"),
			Method:              r.Method,
			Path:                r.URL.Path,
			Body:                body,
			SubdomainHost:       r.Host,
			PublicZoneDomain:    t.publicZoneDomain,
			DealershipIDHeader:  r.Header.Get("X-Dealership-Id"),
		}

		resolved, err := t.resolver.Resolve(r.Context(), req)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if resolved.Dealership == nil && t.requireDealership {
			writeAppError(w, apperr.Input("dealership-required"))
			return
		}

		ctx := r.Context()
		if resolved.Dealership != nil {
			ctx = context.WithValue(ctx, dealershipCtxKey, resolved.Dealership)
		}
		if resolved.User != nil {
			ctx = context.WithValue(ctx, userCtxKey, resolved.User)
			ctx = WithUserID(ctx, resolved.User.ID)
		}
		if resolved.Token != nil {
			ctx = context.WithValue(ctx, tokenCtxKey, resolved.Token)
		}
		if resolved.Claims != nil {
			ctx = context.WithValue(ctx, claimsCtxKey, resolved.Claims)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole returns a middleware admitting only requests whose
// resolved user's role satisfies minRole (spec.md §4.2 role gate).
func RequireRole(minRole domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				writeAppError(w, apperr.Auth("authentication required"))
				return
			}
			if user.Role != domain.RoleSuperAdmin && user.Role.Rank() < minRole.Rank() {
				writeAppError(w, apperr.Forbidden("insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCapabilities returns a middleware admitting only API-token
// requests whose permission set is a superset of required.
func RequireCapabilities(required ...domain.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromContext(r.Context())
			if token == nil {
				writeAppError(w, apperr.Auth("api token required"))
				return
			}
			if !token.HasAllCapabilities(required) {
				writeAppError(w, apperr.Forbidden("token missing required capability"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func DealershipFromContext(ctx context.Context) *domain.Dealership {
	d, _ := ctx.Value(dealershipCtxKey).(*domain.Dealership)
	return d
}

func UserFromContext(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userCtxKey).(*domain.User)
	return u
}

func TokenFromContext(ctx context.Context) *domain.ExternalApiToken {
	t, _ := ctx.Value(tokenCtxKey).(*domain.ExternalApiToken)
	return t
}

func ClaimsFromContext(ctx context.Context) *tenant.Claims {
	c, _ := ctx.Value(claimsCtxKey).(*tenant.Claims)
	return c
}
