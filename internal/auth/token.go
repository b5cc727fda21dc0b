package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantd/internal/models"
)

// ErrInvalidToken is returned for every token verification failure. Bad
// signatures, malformed tokens, and expired tokens are deliberately not
// distinguished to the caller.
var ErrInvalidToken = errors.New("invalid or expired token")

const tokenIssuer = "tenantd"

// Claims carries the principal identity and tenant binding inside a token.
// OrgID is empty when the admin was never bound to an organization.
type Claims struct {
	OrgID string `json:"org_id"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies bearer tokens using a shared HMAC secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a token manager. ttl bounds the validity of every
// issued token.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if len(secret) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}

	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
	}, nil
}

// Issue creates a signed token binding adminID to orgID. orgID may be nil for
// an admin that was never backfilled with an organization.
func (m *TokenManager) Issue(adminID uuid.UUID, orgID *uuid.UUID) (string, error) {
	now := time.Now()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Issuer:    tokenIssuer,
		},
	}
	if orgID != nil {
		claims.OrgID = orgID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks the signature and expiry of a token and extracts the
// principal. Every failure collapses to ErrInvalidToken.
func (m *TokenManager) Verify(tokenString string) (*models.Principal, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		log.Debug().Err(err).Msg("Token parse error")
		return nil, ErrInvalidToken
	}

	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Before(time.Now()) {
		return nil, ErrInvalidToken
	}

	adminID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	principal := &models.Principal{AdminID: adminID}

	if claims.OrgID != "" {
		orgID, err := uuid.Parse(claims.OrgID)
		if err != nil {
			return nil, ErrInvalidToken
		}
		principal.OrgID = orgID
	}

	return principal, nil
}
