package middleware

import (
	"net/http"
	"strings"

	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/internal/token"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// Policy describes the access requirements of a route. A public route skips
// authentication entirely; an empty Roles list admits any authenticated
// principal.
type Policy struct {
	Public bool
	Roles  []string
}

// AuthMiddleware resolves bearer tokens to principals and enforces per-route
// role policies. The role on the principal always comes from storage, not
// from the token payload, so role changes apply immediately.
type AuthMiddleware struct {
	users  repository.UserRepository
	tokens repository.TokenRepository
	issuer *token.Issuer
}

// NewAuthMiddleware wires the gate over the user and token stores.
func NewAuthMiddleware(users repository.UserRepository, tokens repository.TokenRepository, issuer *token.Issuer) *AuthMiddleware {
	return &AuthMiddleware{users: users, tokens: tokens, issuer: issuer}
}

// ExtractBearer pulls the token out of an Authorization header value.
func ExtractBearer(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Enforce returns a handler applying the two-stage check: authenticate the
// bearer token, then match the principal's role against the policy.
func (m *AuthMiddleware) Enforce(policy Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if policy.Public {
			c.Next()
			return
		}

		principal, ok := m.authenticate(c)
		if !ok {
			return
		}
		c.Set(principalKey, principal)

		if !RoleSatisfies(principal.Role, policy.Roles) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Next()
	}
}

// RequireAuth admits any authenticated principal.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return m.Enforce(Policy{})
}

// RequireRoles admits principals whose role satisfies the given set.
func (m *AuthMiddleware) RequireRoles(roles ...string) gin.HandlerFunc {
	return m.Enforce(Policy{Roles: roles})
}

// authenticate resolves the request's bearer token to a principal. Any
// failure (missing header, bad signature, expiry, revoked row, vanished
// user) aborts with 401.
func (m *AuthMiddleware) authenticate(c *gin.Context) (model.Principal, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
		return model.Principal{}, false
	}

	tokenString, ok := ExtractBearer(authHeader)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
		return model.Principal{}, false
	}

	// Signature and exp claim first: cheap, no DB hit.
	claims, err := m.issuer.Verify(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid or expired token"))
		return model.Principal{}, false
	}

	userID, err := claims.UserID()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
		return model.Principal{}, false
	}

	ctx := c.Request.Context()

	// A signed token whose row was swept or revoked is no longer accepted.
	live, err := m.tokens.IsAccessTokenLive(ctx, userID, tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify token"))
		return model.Principal{}, false
	}
	if !live {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid or expired token"))
		return model.Principal{}, false
	}

	// Re-fetch the user: the role in storage is authoritative, not the one
	// embedded at issuance time.
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid or expired token"))
		return model.Principal{}, false
	}

	return model.Principal{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
		Role:     user.Role,
	}, true
}

// RoleSatisfies applies the role hierarchy: root passes every check, admin
// passes unless the requirement names root without naming admin, every other
// role must appear literally in the required set. An empty required set
// admits any authenticated principal.
func RoleSatisfies(role string, required []string) bool {
	if len(required) == 0 {
		return true
	}
	if role == "" {
		return false
	}
	if role == model.RoleRoot {
		return true
	}

	includesRoot := false
	inSet := false
	for _, r := range required {
		if r == model.RoleRoot {
			includesRoot = true
		}
		if r == role {
			inSet = true
		}
	}

	if role == model.RoleAdmin && !includesRoot {
		return true
	}
	return inSet
}

// CurrentPrincipal retrieves the authenticated principal set by Enforce.
func CurrentPrincipal(c *gin.Context) (model.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return model.Principal{}, false
	}
	principal, ok := v.(model.Principal)
	return principal, ok
}
