package tenant

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ayubfarah/dealer-ops-core/internal/apperr"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
)

// SessionKind distinguishes the three token shapes issued by this
// package: an ordinary login session, an extension-scoped session, and
// a super_admin impersonation session.
type SessionKind string

const (
	KindSession       SessionKind = "session"
	KindExtension     SessionKind = "extension"
	KindImpersonation SessionKind = "impersonation"
)

// Claims is the payload of every JWT this service issues. Unlike the
// teacher's ClerkClaims, which only ever verified someone else's token,
// this service signs its own.
type Claims struct {
	jwt.RegisteredClaims
	UserID             int64       `json:"uid"`
	DealershipID       int64       `json:"did,omitempty"`
	Role               domain.Role `json:"role"`
	Kind               SessionKind `json:"kind"`
	ImpersonatorUserID int64       `json:"impersonator_uid,omitempty"`
}

type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTIssuer(secret string, ttl time.Duration) *JWTIssuer {
	return &JWTIssuer{secret: []byte(secret), ttl: ttl}
}

func (j *JWTIssuer) Issue(u domain.User, kind SessionKind) (string, error) {
	var dealershipID int64
	if u.DealershipID != nil {
		dealershipID = *u.DealershipID
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   fmt.Sprintf("%d", u.ID),
		},
		UserID:       u.ID,
		DealershipID: dealershipID,
		Role:         u.Role,
		Kind:         kind,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// IssueImpersonation mints a session acting as target, recording who is
// really behind the wheel so every later audit entry can attribute the
// action to the real super_admin.
func (j *JWTIssuer) IssueImpersonation(superAdmin, target domain.User) (string, error) {
	var dealershipID int64
	if target.DealershipID != nil {
		dealershipID = *target.DealershipID
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   fmt.Sprintf("%d", target.ID),
		},
		UserID:             target.ID,
		DealershipID:       dealershipID,
		Role:               target.Role,
		Kind:               KindImpersonation,
		ImpersonatorUserID: superAdmin.ID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

func (j *JWTIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return nil, apperr.Auth("invalid or expired session")
	}
	return claims, nil
}
