package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(env *testEnv) UserService {
	return NewUserService(env.users, env.auth, env.audit)
}

func TestCreateUser(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	svc := newUserService(env)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, CreateUserRequest{
		Username: "carol",
		Name:     "Carol",
		Password: "s3cret",
		Role:     "manager",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "carol", created.Username)
	assert.Equal(t, "manager", created.Role)

	// The new account can log in right away.
	_, err = env.auth.Login(ctx, LoginRequest{Username: "carol", Password: "s3cret"})
	require.NoError(t, err)
}

func TestCreateUserValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	svc := newUserService(env)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserRequest{
		Username: "carol",
		Name:     "Carol",
		Password: "s3cret",
		Role:     "superuser",
	})
	require.ErrorIs(t, err, ErrValidation)

	env.createUser(t, "carol", "s3cret", "employee")
	_, err = svc.CreateUser(ctx, CreateUserRequest{
		Username: "carol",
		Name:     "Carol Again",
		Password: "s3cret",
		Role:     "employee",
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestUpdateUser(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	svc := newUserService(env)
	ctx := context.Background()

	carol := env.createUser(t, "carol", "s3cret", "employee")

	updated, err := svc.UpdateUser(ctx, carol.ID, UpdateUserRequest{Role: "admin", Name: "Carol D."})
	require.NoError(t, err)
	assert.Equal(t, "admin", updated.Role)
	assert.Equal(t, "Carol D.", updated.Name)
	// Untouched fields survive a partial update.
	assert.Equal(t, "carol", updated.Username)

	_, err = svc.UpdateUser(ctx, carol.ID, UpdateUserRequest{Role: "superuser"})
	require.ErrorIs(t, err, ErrValidation)

	env.createUser(t, "dave", "s3cret", "employee")
	_, err = svc.UpdateUser(ctx, carol.ID, UpdateUserRequest{Username: "dave"})
	require.ErrorIs(t, err, ErrConflict)

	_, err = svc.UpdateUser(ctx, uuid.New(), UpdateUserRequest{Name: "Nobody"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUserPassword(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	svc := newUserService(env)
	ctx := context.Background()

	carol := env.createUser(t, "carol", "s3cret", "employee")

	_, err := svc.UpdateUser(ctx, carol.ID, UpdateUserRequest{Password: "n3wpass"})
	require.NoError(t, err)

	_, err = env.auth.Login(ctx, LoginRequest{Username: "carol", Password: "s3cret"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, LoginRequest{Username: "carol", Password: "n3wpass"})
	require.NoError(t, err)
}

func TestListUsers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	svc := newUserService(env)
	ctx := context.Background()

	env.createUser(t, "alice", "s3cret", "admin")
	env.createUser(t, "bob", "s3cret", "employee")
	env.createUser(t, "carol", "s3cret", "manager")

	page, total, err := svc.ListUsers(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)

	rest, _, err := svc.ListUsers(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestDeleteUserRevokesSessions(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	svc := newUserService(env)
	ctx := context.Background()

	carol := env.createUser(t, "carol", "s3cret", "employee")

	pair, err := env.auth.Login(ctx, LoginRequest{Username: "carol", Password: "s3cret"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, carol.ID))

	_, err = svc.GetUserByID(ctx, carol.ID)
	require.ErrorIs(t, err, ErrNotFound)

	// Tokens issued before the delete no longer work.
	assert.False(t, env.tok.ValidateToken(ctx, pair.AccessToken))
	_, err = env.auth.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	require.ErrorIs(t, svc.DeleteUser(ctx, carol.ID), ErrNotFound)
}
