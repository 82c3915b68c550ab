package service

import (
	"context"
	"testing"
	"time"

	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/internal/token"
	"backoffice/pkg/hash"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db     *gorm.DB
	users  repository.UserRepository
	tokens repository.TokenRepository
	orders repository.OrderRepository
	tx     repository.TransactionManager
	issuer *token.Issuer
	auth   AuthService
	tok    TokenService
	audit  AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithTTL(t, 15*time.Minute)
}

func newTestEnvWithTTL(t *testing.T, accessTTL time.Duration) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.AccessToken{},
		&model.RefreshToken{},
		&model.Order{},
		&model.OrderItem{},
		&model.AuditLog{},
	))

	users := repository.NewUserRepository(db)
	tokens := repository.NewTokenRepository(db)
	orders := repository.NewOrderRepository(db)
	tx := repository.NewTransactionManager(db)
	issuer := token.NewIssuer([]byte("test-jwt-secret"), accessTTL)
	audit := NewAuditService(repository.NewAuditRepository(db))

	return &testEnv{
		db:     db,
		users:  users,
		tokens: tokens,
		orders: orders,
		tx:     tx,
		issuer: issuer,
		auth:   NewAuthService(users, tokens, issuer, 7*24*time.Hour, tx, audit),
		tok:    NewTokenService(tokens, issuer),
		audit:  audit,
	}
}

func (env *testEnv) createUser(t *testing.T, username, password, role string) *model.User {
	t.Helper()

	hashed, err := hash.HashPassword(password)
	require.NoError(t, err)

	user := &model.User{
		Username:     username,
		Name:         "Test " + username,
		PasswordHash: hashed,
		Role:         role,
	}
	require.NoError(t, env.users.Create(context.Background(), user))
	return user
}
