package repository

import (
	"context"
	"time"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenRepository is the persistence layer for access and refresh tokens.
// All operations are row-level atomic; refresh rotation relies on
// RevokeRefreshToken's conditional update to decide races between concurrent
// refreshes of the same value.
type TokenRepository interface {
	SaveAccessToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	FindAccessToken(ctx context.Context, token string) (*model.AccessToken, error)
	IsAccessTokenLive(ctx context.Context, userID uuid.UUID, token string) (bool, error)
	ListUserAccessTokens(ctx context.Context, userID uuid.UUID) ([]model.AccessToken, error)
	DeleteAccessToken(ctx context.Context, id uuid.UUID) error
	DeleteUserAccessTokens(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteExpiredAccessTokens(ctx context.Context) (int64, error)

	SaveRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	FindLiveRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string) (int64, error)
	RevokeUserRefreshTokens(ctx context.Context, userID uuid.UUID) error
	DeleteExpiredRefreshTokens(ctx context.Context) (int64, error)
}

type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository returns a new instance of TokenRepository
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) SaveAccessToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	record := model.AccessToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return GetDB(ctx, r.db).Create(&record).Error
}

func (r *tokenRepository) FindAccessToken(ctx context.Context, token string) (*model.AccessToken, error) {
	var record model.AccessToken
	if err := GetDB(ctx, r.db).Preload("User").First(&record, "token = ?", token).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// IsAccessTokenLive reports whether a matching non-expired row still exists.
// A token that was swept or explicitly revoked fails this check even if its
// signature is still valid.
func (r *tokenRepository) IsAccessTokenLive(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.AccessToken{}).
		Where("user_id = ? AND token = ? AND expires_at >= ?", userID, token, time.Now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *tokenRepository) ListUserAccessTokens(ctx context.Context, userID uuid.UUID) ([]model.AccessToken, error) {
	var records []model.AccessToken
	err := GetDB(ctx, r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *tokenRepository) DeleteAccessToken(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.AccessToken{}).Error
}

func (r *tokenRepository) DeleteUserAccessTokens(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := GetDB(ctx, r.db).Where("user_id = ?", userID).Delete(&model.AccessToken{})
	return result.RowsAffected, result.Error
}

func (r *tokenRepository) DeleteExpiredAccessTokens(ctx context.Context) (int64, error) {
	result := GetDB(ctx, r.db).Where("expires_at < ?", time.Now()).Delete(&model.AccessToken{})
	return result.RowsAffected, result.Error
}

func (r *tokenRepository) SaveRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	record := model.RefreshToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return GetDB(ctx, r.db).Create(&record).Error
}

// FindLiveRefreshToken matches token value AND is_revoked=false AND a future
// expiry, preloading the owning user.
func (r *tokenRepository) FindLiveRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	var record model.RefreshToken
	err := GetDB(ctx, r.db).Preload("User").
		First(&record, "token = ? AND is_revoked = ? AND expires_at > ?", token, false, time.Now()).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// RevokeRefreshToken sets is_revoked on every non-revoked row matching the
// value and returns how many rows flipped. Zero means the token was already
// revoked (or never existed): exactly one of two concurrent rotations of the
// same value observes a non-zero count.
func (r *tokenRepository) RevokeRefreshToken(ctx context.Context, token string) (int64, error) {
	result := GetDB(ctx, r.db).Model(&model.RefreshToken{}).
		Where("token = ? AND is_revoked = ?", token, false).
		Update("is_revoked", true)
	return result.RowsAffected, result.Error
}

func (r *tokenRepository) RevokeUserRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.RefreshToken{}).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Update("is_revoked", true).Error
}

func (r *tokenRepository) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	result := GetDB(ctx, r.db).Where("expires_at < ?", time.Now()).Delete(&model.RefreshToken{})
	return result.RowsAffected, result.Error
}
