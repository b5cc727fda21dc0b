package service

import (
	"context"
	"errors"

	"github.com/wolfeidau/tenantd/internal/auth"
	"github.com/wolfeidau/tenantd/internal/models"
	"github.com/wolfeidau/tenantd/internal/store"
)

// ErrUnauthorized is returned for every failed login or token check. Unknown
// email, missing hash, and wrong password are deliberately indistinguishable.
var ErrUnauthorized = errors.New("incorrect email or password")

// AuthService handles admin login and token-to-principal resolution.
type AuthService struct {
	store  store.TenantStore
	tokens *auth.TokenManager
}

// NewAuthService creates an auth service on top of a tenant store and token manager.
func NewAuthService(st store.TenantStore, tokens *auth.TokenManager) *AuthService {
	return &AuthService{
		store:  st,
		tokens: tokens,
	}
}

// Login verifies the admin's credentials and issues a bearer token bound to
// the admin's organization.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	admin, err := s.store.FindAdmin(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrAdminNotFound) {
			return "", ErrUnauthorized
		}
		return "", err
	}

	if admin.PasswordHash == "" || !auth.VerifyPassword(password, admin.PasswordHash) {
		return "", ErrUnauthorized
	}

	return s.tokens.Issue(admin.AdminID, admin.OrgID)
}

// Authenticate resolves a bearer token to a principal. Any verification
// failure collapses to ErrUnauthorized.
func (s *AuthService) Authenticate(tokenString string) (*models.Principal, error) {
	principal, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return principal, nil
}
