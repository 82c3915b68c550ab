package service

import (
	"context"
	"errors"

	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/internal/token"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenService exposes read/inspect/delete operations over persisted access
// tokens: the backing for the verify, user-info and token listing endpoints.
type TokenService interface {
	ValidateToken(ctx context.Context, tokenString string) bool
	UserInfo(ctx context.Context, tokenString string) (*model.User, error)
	ListUserTokens(ctx context.Context, userID uuid.UUID) ([]model.AccessToken, error)
	DeleteToken(ctx context.Context, userID, tokenID uuid.UUID) error
}

type tokenService struct {
	tokens repository.TokenRepository
	issuer *token.Issuer
}

func NewTokenService(tokens repository.TokenRepository, issuer *token.Issuer) TokenService {
	return &tokenService{tokens: tokens, issuer: issuer}
}

// ValidateToken checks signature and expiry first (cheap, no DB hit), then
// confirms a live row still backs the token. No side effects.
func (s *tokenService) ValidateToken(ctx context.Context, tokenString string) bool {
	claims, err := s.issuer.Verify(tokenString)
	if err != nil {
		return false
	}
	userID, err := claims.UserID()
	if err != nil {
		return false
	}
	live, err := s.tokens.IsAccessTokenLive(ctx, userID, tokenString)
	if err != nil {
		return false
	}
	return live
}

// UserInfo resolves a valid token to its owning user record. Credential
// fields never serialize (the model hides the hash from JSON).
func (s *tokenService) UserInfo(ctx context.Context, tokenString string) (*model.User, error) {
	if !s.ValidateToken(ctx, tokenString) {
		return nil, ErrUnauthorized
	}
	record, err := s.tokens.FindAccessToken(ctx, tokenString)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record.User, nil
}

func (s *tokenService) ListUserTokens(ctx context.Context, userID uuid.UUID) ([]model.AccessToken, error) {
	return s.tokens.ListUserAccessTokens(ctx, userID)
}

// DeleteToken removes a single access token after confirming the caller owns
// it. A foreign or unknown token id reports not found either way.
func (s *tokenService) DeleteToken(ctx context.Context, userID, tokenID uuid.UUID) error {
	records, err := s.tokens.ListUserAccessTokens(ctx, userID)
	if err != nil {
		return err
	}
	for _, record := range records {
		if record.ID == tokenID {
			return s.tokens.DeleteAccessToken(ctx, tokenID)
		}
	}
	return ErrNotFound
}
