package tenant

import (
	"context"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

type ImpersonationService struct {
	stores *store.Stores
	jwt    *JWTIssuer
	clock  clock.Clock
}

func NewImpersonationService(stores *store.Stores, jwt *JWTIssuer, clk clock.Clock) *ImpersonationService {
	return &ImpersonationService{stores: stores, jwt: jwt, clock: clk}
}

// Start ends any prior active session for superAdmin before minting a
// new one, so at most one is ever active (spec.md §4.2).
func (s *ImpersonationService) Start(ctx context.Context, superAdmin, target domain.User) (string, domain.ImpersonationSession, error) {
	if superAdmin.Role != domain.RoleSuperAdmin {
		return "", domain.ImpersonationSession{}, apperr.Forbidden("only super_admin may impersonate")
	}
	if target.Role == domain.RoleSuperAdmin {
		return "", domain.ImpersonationSession{}, apperr.Input("cannot impersonate another super_admin")
	}

	if prior, active, err := s.stores.Impersonation.GetActive(ctx, superAdmin.ID); err != nil {
		return "", domain.ImpersonationSession{}, apperr.Internal("impersonation.Start.lookup", err)
	} else if active {
		if err := s.stores.Impersonation.End(ctx, prior.ID, s.clock.Now()); err != nil {
			return "", domain.ImpersonationSession{}, apperr.Internal("impersonation.Start.endPrior", err)
		}
	}

	sess, err := s.stores.Impersonation.Start(ctx, domain.ImpersonationSession{
		SuperAdminID: superAdmin.ID,
		TargetUserID: target.ID,
	})
	if err != nil {
		return "", domain.ImpersonationSession{}, apperr.Internal("impersonation.Start.create", err)
	}

	token, err := s.jwt.IssueImpersonation(superAdmin, target)
	if err != nil {
		return "", domain.ImpersonationSession{}, apperr.Internal("impersonation.Start.issue", err)
	}

	_ = s.stores.AuditLogs.Write(ctx, domain.AuditLog{
		DealershipID: target.DealershipID,
		UserID:       superAdmin.ID,
		Action:       "impersonation.start",
		Resource:     "user",
		ResourceID:   itoa(target.ID),
	})

	return token, sess, nil
}

// RecordAction increments the active session's action counter and
// writes an audit entry carrying both identities, per spec.md §4.2:
// "every state-changing action performed during an active session
// increments its counter and writes an audit log carrying both
// identities."
func (s *ImpersonationService) RecordAction(ctx context.Context, claims Claims, action, resource, resourceID string) error {
	if claims.Kind != KindImpersonation {
		return nil
	}
	sess, active, err := s.stores.Impersonation.GetActive(ctx, claims.ImpersonatorUserID)
	if err != nil || !active {
		return nil
	}
	if err := s.stores.Impersonation.IncrementActions(ctx, sess.ID); err != nil {
		return apperr.Internal("impersonation.RecordAction.increment", err)
	}
	var dealershipID *int64
	if claims.DealershipID != 0 {
		id := claims.DealershipID
		dealershipID = &id
	}
	if err := s.stores.AuditLogs.Write(ctx, domain.AuditLog{
		DealershipID: dealershipID,
		UserID:       claims.ImpersonatorUserID,
		Action:       action,
		Resource:     resource,
		ResourceID:   resourceID,
		Details:      "impersonating uid=" + itoa(claims.UserID),
	}); err != nil {
		return apperr.Internal("impersonation.RecordAction.audit", err)
	}
	return nil
}

func (s *ImpersonationService) End(ctx context.Context, superAdminID int64) error {
	sess, active, err := s.stores.Impersonation.GetActive(ctx, superAdminID)
	if err != nil {
		return apperr.Internal("impersonation.End.lookup", err)
	}
	if !active {
		return apperr.Input("no active impersonation session")
	}
	return s.stores.Impersonation.End(ctx, sess.ID, s.clock.Now())
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
