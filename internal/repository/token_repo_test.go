package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"backoffice/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.AccessToken{},
		&model.RefreshToken{},
	))

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()

	user := &model.User{
		Username:     username,
		Name:         "Test User",
		PasswordHash: "irrelevant",
		Role:         model.RoleEmployee,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestTokenRepository_AccessTokenLifecycle(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewTokenRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")

	require.NoError(t, repo.SaveAccessToken(ctx, user.ID, "signed-token", time.Now().Add(15*time.Minute)))

	record, err := repo.FindAccessToken(ctx, "signed-token")
	require.NoError(t, err)
	assert.Equal(t, user.ID, record.UserID)
	assert.Equal(t, "alice", record.User.Username)

	live, err := repo.IsAccessTokenLive(ctx, user.ID, "signed-token")
	require.NoError(t, err)
	assert.True(t, live)

	// Wrong user or unknown value is not live.
	live, err = repo.IsAccessTokenLive(ctx, uuid.New(), "signed-token")
	require.NoError(t, err)
	assert.False(t, live)

	require.NoError(t, repo.DeleteAccessToken(ctx, record.ID))
	live, err = repo.IsAccessTokenLive(ctx, user.ID, "signed-token")
	require.NoError(t, err)
	assert.False(t, live)
}

func TestTokenRepository_ExpiredAccessTokenNotLive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewTokenRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "bob")

	require.NoError(t, repo.SaveAccessToken(ctx, user.ID, "stale-token", time.Now().Add(-time.Minute)))

	live, err := repo.IsAccessTokenLive(ctx, user.ID, "stale-token")
	require.NoError(t, err)
	assert.False(t, live)
}

func TestTokenRepository_ListUserAccessTokens_NewestFirst(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewTokenRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "carol")

	older := model.AccessToken{
		UserID:    user.ID,
		Token:     "older",
		CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}
	require.NoError(t, db.Create(&older).Error)
	require.NoError(t, repo.SaveAccessToken(ctx, user.ID, "newer", time.Now().Add(15*time.Minute)))

	tokens, err := repo.ListUserAccessTokens(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "newer", tokens[0].Token)
	assert.Equal(t, "older", tokens[1].Token)
}

func TestTokenRepository_DeleteExpiredAccessTokens_Idempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewTokenRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "dave")

	require.NoError(t, repo.SaveAccessToken(ctx, user.ID, "expired-1", time.Now().Add(-time.Hour)))
	require.NoError(t, repo.SaveAccessToken(ctx, user.ID, "expired-2", time.Now().Add(-time.Minute)))
	require.NoError(t, repo.SaveAccessToken(ctx, user.ID, "live", time.Now().Add(time.Hour)))

	count, err := repo.DeleteExpiredAccessTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Second run removes nothing.
	count, err = repo.DeleteExpiredAccessTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	live, err := repo.IsAccessTokenLive(ctx, user.ID, "live")
	require.NoError(t, err)
	assert.True(t, live)
}

func TestTokenRepository_FindLiveRefreshToken(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewTokenRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "erin")

	require.NoError(t, repo.SaveRefreshToken(ctx, user.ID, "refresh-live", time.Now().Add(7*24*time.Hour)))

	record, err := repo.FindLiveRefreshToken(ctx, "refresh-live")
	require.NoError(t, err)
	assert.Equal(t, user.ID, record.UserID)
	assert.Equal(t, "erin", record.User.Username)
	assert.False(t, record.IsRevoked)

	// Expired token is not live.
	require.NoError(t, repo.SaveRefreshToken(ctx, user.ID, "refresh-expired", time.Now().Add(-time.Minute)))
	_, err = repo.FindLiveRefreshToken(ctx, "refresh-expired")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	// Revoked token is not live.
	rows, err := repo.RevokeRefreshToken(ctx, "refresh-live")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	_, err = repo.FindLiveRefreshToken(ctx, "refresh-live")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestTokenRepository_RevokeRefreshToken_SingleUse(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewTokenRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "frank")

	require.NoError(t, repo.SaveRefreshToken(ctx, user.ID, "rotate-me", time.Now().Add(7*24*time.Hour)))

	// First revoke flips the row; the second sees nothing left to flip.
	// This is the decision point for two concurrent refreshes of the same
	// value: exactly one observes a non-zero count.
	rows, err := repo.RevokeRefreshToken(ctx, "rotate-me")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = repo.RevokeRefreshToken(ctx, "rotate-me")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	// Unknown value revokes nothing and does not error.
	rows, err = repo.RevokeRefreshToken(ctx, "never-existed")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestTokenRepository_RevokeUserRefreshTokens(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewTokenRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "grace")
	other := createTestUser(t, db, "heidi")

	require.NoError(t, repo.SaveRefreshToken(ctx, user.ID, "grace-1", time.Now().Add(time.Hour)))
	require.NoError(t, repo.SaveRefreshToken(ctx, user.ID, "grace-2", time.Now().Add(time.Hour)))
	require.NoError(t, repo.SaveRefreshToken(ctx, other.ID, "heidi-1", time.Now().Add(time.Hour)))

	require.NoError(t, repo.RevokeUserRefreshTokens(ctx, user.ID))

	_, err := repo.FindLiveRefreshToken(ctx, "grace-1")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	_, err = repo.FindLiveRefreshToken(ctx, "grace-2")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	// Other users are untouched.
	_, err = repo.FindLiveRefreshToken(ctx, "heidi-1")
	require.NoError(t, err)
}

func TestTokenRepository_DeleteUserAccessTokens(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewTokenRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "ivan")

	require.NoError(t, repo.SaveAccessToken(ctx, user.ID, "ivan-1", time.Now().Add(time.Hour)))
	require.NoError(t, repo.SaveAccessToken(ctx, user.ID, "ivan-2", time.Now().Add(time.Hour)))

	count, err := repo.DeleteUserAccessTokens(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	tokens, err := repo.ListUserAccessTokens(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestTokenRepository_DeleteExpiredRefreshTokens_Idempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewTokenRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "judy")

	require.NoError(t, repo.SaveRefreshToken(ctx, user.ID, "dead", time.Now().Add(-time.Minute)))
	require.NoError(t, repo.SaveRefreshToken(ctx, user.ID, "alive", time.Now().Add(time.Hour)))

	count, err := repo.DeleteExpiredRefreshTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.DeleteExpiredRefreshTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
