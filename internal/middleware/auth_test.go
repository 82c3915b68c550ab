package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/internal/token"
	"backoffice/pkg/hash"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRoleSatisfies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		role     string
		required []string
		want     bool
	}{
		{"empty set admits anyone", "employee", nil, true},
		{"empty role never passes a check", "", []string{"employee"}, false},
		{"root passes admin check", "root", []string{"admin"}, true},
		{"root passes root check", "root", []string{"root"}, true},
		{"admin passes employee check", "admin", []string{"employee"}, true},
		{"admin passes admin check", "admin", []string{"admin"}, true},
		{"admin fails root-only check", "admin", []string{"root"}, false},
		{"admin passes mixed root and admin", "admin", []string{"root", "admin"}, true},
		{"manager passes literal match", "manager", []string{"admin", "manager"}, true},
		{"employee fails admin check", "employee", []string{"admin"}, false},
		{"employee passes literal match", "employee", []string{"employee"}, true},
		{"unknown role fails", "intern", []string{"employee"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, RoleSatisfies(tt.role, tt.required))
		})
	}
}

func TestExtractBearer(t *testing.T) {
	t.Parallel()

	tok, ok := ExtractBearer("Bearer abc.def.ghi")
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", tok)

	for _, header := range []string{"", "Bearer", "Bearer ", "Basic abc", "bearer abc"} {
		_, ok := ExtractBearer(header)
		assert.False(t, ok, "header %q", header)
	}
}

type gateEnv struct {
	db     *gorm.DB
	users  repository.UserRepository
	tokens repository.TokenRepository
	issuer *token.Issuer
	router *gin.Engine
}

func newGateEnv(t *testing.T) *gateEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.AccessToken{}, &model.RefreshToken{}))

	env := &gateEnv{
		db:     db,
		users:  repository.NewUserRepository(db),
		tokens: repository.NewTokenRepository(db),
		issuer: token.NewIssuer([]byte("test-jwt-secret"), 15*time.Minute),
	}

	auth := NewAuthMiddleware(env.users, env.tokens, env.issuer)
	router := gin.New()
	router.GET("/any", auth.RequireAuth(), func(c *gin.Context) {
		principal, _ := CurrentPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"username": principal.Username, "role": principal.Role})
	})
	router.GET("/admin", auth.RequireRoles(model.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	env.router = router
	return env
}

// issueFor creates the user, signs an access token and persists its row, the
// same shape the login flow produces.
func (env *gateEnv) issueFor(t *testing.T, username, role string) (*model.User, string) {
	t.Helper()
	ctx := context.Background()

	hashed, err := hash.HashPassword("s3cret")
	require.NoError(t, err)
	user := &model.User{Username: username, Name: username, PasswordHash: hashed, Role: role}
	require.NoError(t, env.users.Create(ctx, user))

	accessToken, exp, err := env.issuer.Issue(user)
	require.NoError(t, err)
	require.NoError(t, env.tokens.SaveAccessToken(ctx, user.ID, accessToken, exp))
	return user, accessToken
}

func (env *gateEnv) get(path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func TestGateRejectsAnonymous(t *testing.T) {
	t.Parallel()
	env := newGateEnv(t)

	assert.Equal(t, http.StatusUnauthorized, env.get("/any", "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.get("/any", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, env.get("/any", "Bearer nonsense").Code)
}

func TestGateAdmitsLiveToken(t *testing.T) {
	t.Parallel()
	env := newGateEnv(t)

	_, accessToken := env.issueFor(t, "alice", "employee")

	w := env.get("/any", "Bearer "+accessToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alice"`)
}

func TestGateRejectsSweptToken(t *testing.T) {
	t.Parallel()
	env := newGateEnv(t)

	user, accessToken := env.issueFor(t, "alice", "employee")

	_, err := env.tokens.DeleteUserAccessTokens(context.Background(), user.ID)
	require.NoError(t, err)

	// The signature is still good, but the row is gone.
	assert.Equal(t, http.StatusUnauthorized, env.get("/any", "Bearer "+accessToken).Code)
}

func TestGateRoleEnforcement(t *testing.T) {
	t.Parallel()
	env := newGateEnv(t)

	_, employeeToken := env.issueFor(t, "bob", "employee")
	_, adminToken := env.issueFor(t, "alice", "admin")

	assert.Equal(t, http.StatusForbidden, env.get("/admin", "Bearer "+employeeToken).Code)
	assert.Equal(t, http.StatusOK, env.get("/admin", "Bearer "+adminToken).Code)
}

func TestGateUsesStoredRole(t *testing.T) {
	t.Parallel()
	env := newGateEnv(t)

	user, accessToken := env.issueFor(t, "bob", "employee")

	assert.Equal(t, http.StatusForbidden, env.get("/admin", "Bearer "+accessToken).Code)

	// Promote without reissuing; the gate reads the stored role, so the old
	// token gains access immediately.
	user.Role = "admin"
	require.NoError(t, env.users.Update(context.Background(), user))

	assert.Equal(t, http.StatusOK, env.get("/admin", "Bearer "+accessToken).Code)
}
