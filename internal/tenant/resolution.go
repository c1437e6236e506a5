// Package tenant implements the resolution, role/capability gating,
// token issuance and impersonation rules that every request passes
// through before it reaches a handler (spec.md §4.2).
package tenant

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

// Resolved carries the outcome of the precedence chain: a dealership
// (when one was found), the authenticated user (session/subdomain
// paths), and the authenticated token (API-token path).
type Resolved struct {
	Dealership *domain.Dealership
	User       *domain.User
	Token      *domain.ExternalApiToken
	Claims     *Claims
}

// Request is the subset of an inbound HTTP request the resolver needs,
// kept narrow so it has no net/http dependency.
type Request struct {
	AuthorizationHeader string
	ExtensionSignature  string
	ExtensionTimestamp  string
	Method              string
	Path                string
	Body                []byte
	SubdomainHost       string
	PublicZoneDomain    string
	DealershipIDHeader  string
}

type Resolver struct {
	stores *store.Stores
	jwt    *JWTIssuer
	clock  clock.Clock
}

func NewResolver(stores *store.Stores, jwt *JWTIssuer, clk clock.Clock) *Resolver {
	return &Resolver{stores: stores, jwt: jwt, clock: clk}
}

const apiTokenPrefix = "oag_"

// Resolve runs the five-step precedence chain from spec.md §4.2,
// returning on the first step that yields a result. A route with no
// tenant requirement may still call this and accept a nil Dealership.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Resolved, error) {
	if res, ok, err := r.byAPIToken(ctx, req); err != nil || ok {
		return res, err
	}
	if res, ok, err := r.byExtensionHMAC(ctx, req); err != nil || ok {
		return res, err
	}
	if res, ok, err := r.byJWT(ctx, req); err != nil || ok {
		return res, err
	}
	if res, ok, err := r.bySubdomain(ctx, req); err != nil || ok {
		return res, err
	}
	if res, ok, err := r.byHeaderForSuperAdmin(ctx, req); err != nil || ok {
		return res, err
	}
	return Resolved{}, nil
}

func (r *Resolver) byAPIToken(ctx context.Context, req Request) (Resolved, bool, error) {
	raw := bearerToken(req.AuthorizationHeader)
	if raw == "" || !strings.HasPrefix(raw, apiTokenPrefix) {
		return Resolved{}, false, nil
	}

	prefix := raw
	if len(prefix) > 12 {
		prefix = prefix[:12]
	}
	candidates, err := r.stores.Tokens.CandidatesByPrefix(ctx, prefix)
	if err != nil {
		return Resolved{}, false, apperr.Internal("tenant.byAPIToken", err)
	}
	for _, cand := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(cand.TokenHash), []byte(raw)) == nil {
			dealership, err := r.stores.Dealerships.GetByID(ctx, cand.DealershipID)
			if err != nil {
				return Resolved{}, false, apperr.Internal("tenant.byAPIToken.dealership", err)
			}
			return Resolved{Dealership: &dealership, Token: &cand}, true, nil
		}
	}
	return Resolved{}, false, apperr.Auth("invalid api token")
}

func (r *Resolver) byExtensionHMAC(ctx context.Context, req Request) (Resolved, bool, error) {
	if req.ExtensionSignature == "" || req.ExtensionTimestamp == "" {
		return Resolved{}, false, nil
	}
	// The extension conveys which dealership it belongs to out of band
	// (via the x-dealership-id header issued at extension login); the
	// HMAC only proves possession of that dealership's signing key.
	if req.DealershipIDHeader == "" {
		return Resolved{}, false, apperr.Auth("missing dealership identifier for extension signature")
	}
	dealership, settings, err := r.dealershipAndSettings(ctx, req.DealershipIDHeader)
	if err != nil {
		return Resolved{}, false, err
	}
	if err := VerifyExtensionSignature(r.clock, settings.ExtensionHMACKey, req.Method, req.Path,
		req.ExtensionTimestamp, req.ExtensionSignature, req.Body); err != nil {
		return Resolved{}, false, err
	}
	return Resolved{Dealership: &dealership}, true, nil
}

func (r *Resolver) byJWT(ctx context.Context, req Request) (Resolved, bool, error) {
	raw := bearerToken(req.AuthorizationHeader)
	if raw == "" || strings.HasPrefix(raw, apiTokenPrefix) {
		return Resolved{}, false, nil
	}
	claims, err := r.jwt.Verify(raw)
	if err != nil {
		return Resolved{}, false, err
	}
	user, err := r.stores.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		return Resolved{}, false, apperr.Auth("session user not found")
	}
	if !user.IsActive {
		return Resolved{}, false, apperr.Auth("user account is disabled")
	}
	if user.DealershipID == nil {
		return Resolved{User: &user, Claims: claims}, true, nil
	}
	dealership, err := r.stores.Dealerships.GetByID(ctx, *user.DealershipID)
	if err != nil {
		return Resolved{}, false, apperr.Internal("tenant.byJWT.dealership", err)
	}
	return Resolved{User: &user, Dealership: &dealership, Claims: claims}, true, nil
}

func (r *Resolver) bySubdomain(ctx context.Context, req Request) (Resolved, bool, error) {
	sub := subdomainOf(req.SubdomainHost, req.PublicZoneDomain)
	if sub == "" {
		return Resolved{}, false, nil
	}
	dealership, err := r.stores.Dealerships.GetBySubdomain(ctx, sub)
	if err != nil {
		return Resolved{}, false, nil
	}
	return Resolved{Dealership: &dealership}, true, nil
}

func (r *Resolver) byHeaderForSuperAdmin(ctx context.Context, req Request) (Resolved, bool, error) {
	if req.DealershipIDHeader == "" {
		return Resolved{}, false, nil
	}
	raw := bearerToken(req.AuthorizationHeader)
	claims, err := r.jwt.Verify(raw)
	if err != nil || claims.Role != domain.RoleSuperAdmin {
		return Resolved{}, false, nil
	}
	dealership, _, err := r.dealershipAndSettings(ctx, req.DealershipIDHeader)
	if err != nil {
		return Resolved{}, false, err
	}
	user, err := r.stores.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		return Resolved{}, false, apperr.Internal("tenant.byHeaderForSuperAdmin.user", err)
	}
	return Resolved{Dealership: &dealership, User: &user}, true, nil
}

func (r *Resolver) dealershipAndSettings(ctx context.Context, idHeader string) (domain.Dealership, domain.DealershipSettings, error) {
	id, ok := parseID(idHeader)
	if !ok {
		return domain.Dealership{}, domain.DealershipSettings{}, apperr.Input("invalid dealership identifier")
	}
	dealership, err := r.stores.Dealerships.GetByID(ctx, id)
	if err != nil {
		return domain.Dealership{}, domain.DealershipSettings{}, apperr.NotFound("dealership not found")
	}
	settings, err := r.stores.Settings.Get(ctx, id)
	if err != nil {
		return domain.Dealership{}, domain.DealershipSettings{}, apperr.Internal("tenant.dealershipAndSettings", err)
	}
	return dealership, settings, nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func subdomainOf(host, zone string) string {
	if zone == "" || !strings.HasSuffix(host, "."+zone) {
		return ""
	}
	sub := strings.TrimSuffix(host, "."+zone)
	if sub == "" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}

func parseID(s string) (int64, bool) {
	var id int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		id = id*10 + int64(c-'0')
	}
	return id, id > 0
}
