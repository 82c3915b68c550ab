package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/internal/token"
	"backoffice/pkg/hash"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// LoginRequest carries login credentials
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries the opaque refresh token value
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AuthService orchestrates credential verification and the token lifecycle:
// issuance, rotation, revocation and expiry sweeps.
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	RemoveExpiredTokens(ctx context.Context) (access, refresh int64, err error)
	RemoveUserTokens(ctx context.Context, userID uuid.UUID) (int64, error)
	RevokeAllSessions(ctx context.Context, userID uuid.UUID) (int64, error)
}

type authService struct {
	users      repository.UserRepository
	tokens     repository.TokenRepository
	issuer     *token.Issuer
	refreshTTL time.Duration
	tx         repository.TransactionManager
	audit      AuditService
}

// NewAuthService wires the authentication flows over the user and token
// stores.
func NewAuthService(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	issuer *token.Issuer,
	refreshTTL time.Duration,
	tx repository.TransactionManager,
	audit AuditService,
) AuthService {
	return &authService{
		users:      users,
		tokens:     tokens,
		issuer:     issuer,
		refreshTTL: refreshTTL,
		tx:         tx,
		audit:      audit,
	}
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Same outcome as a wrong password: no enumeration signal.
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	if user.ID == uuid.Nil {
		return nil, ErrInvalidState
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &user.ID, model.ActionLogin, user.ID.String(), "user logged in")
	return pair, nil
}

// Refresh rotates the presented refresh token: the old value is revoked
// before the new pair is issued, so it can never refresh twice. A crash
// between revoke and issue only forces a re-login.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	record, err := s.tokens.FindLiveRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	// Revoke first. Zero rows means a concurrent refresh of the same value
	// won the race and this attempt must fail.
	rows, err := s.tokens.RevokeRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrInvalidRefreshToken
	}

	// Re-fetch the user so the new access token carries the current role,
	// not the one in effect when the refresh token was issued.
	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &user.ID, model.ActionRefreshToken, user.ID.String(), "token pair rotated")
	return pair, nil
}

// Logout revokes the presented refresh token. Idempotent: revoking an unknown
// or already-revoked value is not an error.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	rows, err := s.tokens.RevokeRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	if rows > 0 {
		s.audit.Record(ctx, nil, model.ActionLogout, "", "refresh token revoked")
	}
	return nil
}

// RemoveExpiredTokens sweeps both token tables. Deletion by a time predicate
// is idempotent, so the sweep is safe to run concurrently and repeatedly.
func (s *authService) RemoveExpiredTokens(ctx context.Context) (int64, int64, error) {
	access, err := s.tokens.DeleteExpiredAccessTokens(ctx)
	if err != nil {
		return 0, 0, err
	}
	refresh, err := s.tokens.DeleteExpiredRefreshTokens(ctx)
	if err != nil {
		return access, 0, err
	}
	if access+refresh > 0 {
		s.audit.Record(ctx, nil, model.ActionSweepTokens, "", fmt.Sprintf("%d access, %d refresh tokens swept", access, refresh))
	}
	return access, refresh, nil
}

func (s *authService) RemoveUserTokens(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.tokens.DeleteUserAccessTokens(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.audit.Record(ctx, &userID, model.ActionRevokeUserTokens, userID.String(), "user access tokens removed")
	return count, nil
}

// RevokeAllSessions is the forced-logout path for account compromise: every
// access token is deleted and every refresh token revoked.
func (s *authService) RevokeAllSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		count, err = s.tokens.DeleteUserAccessTokens(txCtx, userID)
		if err != nil {
			return err
		}
		return s.tokens.RevokeUserRefreshTokens(txCtx, userID)
	})
	if err != nil {
		return 0, err
	}
	s.audit.Record(ctx, &userID, model.ActionRevokeUserTokens, userID.String(), "all sessions revoked")
	return count, nil
}

// issuePair signs a new access token and generates a new opaque refresh
// token, persisting both in one transaction. Issuance is all-or-nothing: a
// signed token whose row was never written would fail the liveness check, so
// it must not reach the client.
func (s *authService) issuePair(ctx context.Context, user *model.User) (*TokenPair, error) {
	accessToken, accessExp, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := token.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	refreshExp := time.Now().Add(s.refreshTTL)

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.tokens.SaveAccessToken(txCtx, user.ID, accessToken, accessExp); err != nil {
			return err
		}
		return s.tokens.SaveRefreshToken(txCtx, user.ID, refreshToken, refreshExp)
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}
