package handler

import (
	"fmt"
	"net/http"
	"time"

	"backoffice/internal/middleware"
	"backoffice/internal/model"
	"backoffice/internal/service"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthHandler struct {
	authService  service.AuthService
	tokenService service.TokenService
}

// NewAuthHandler sets up the routing dependencies for auth endpoints
func NewAuthHandler(authService service.AuthService, tokenService service.TokenService) *AuthHandler {
	return &AuthHandler{authService: authService, tokenService: tokenService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	group := router.Group("/auth")
	{
		// Public routes
		group.POST("/login", h.Login)
		group.POST("/refresh", h.Refresh)
		group.POST("/logout", h.Logout)
		group.GET("/tokens/verify", h.VerifyToken)
		group.GET("/tokens/user-info", h.UserInfo)

		// Authenticated routes
		group.GET("/profile", auth.RequireAuth(), h.Profile)
		group.GET("/tokens", auth.RequireAuth(), h.ListTokens)
		group.DELETE("/tokens", auth.RequireAuth(), h.DeleteTokens)
		group.DELETE("/tokens/:id", auth.RequireAuth(), h.DeleteToken)

		// Admin tier
		group.DELETE("/tokens/expired", auth.RequireRoles(model.RoleAdmin), h.DeleteExpiredTokens)
	}
}

// Login handles POST /auth/login to authenticate and return a token pair
// @Summary      Login user
// @Description  Authenticates a user by username and password, returning an access/refresh token pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.TokenPair}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	pair, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		status := statusFromErr(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	h.setCookies(c, pair)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pair))
}

// Refresh handles POST /auth/refresh to rotate the token pair
// @Summary      Refresh token
// @Description  Issues a new access/refresh token pair using a valid refresh token; the presented token is revoked
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RefreshRequest  true  "Refresh Token"
// @Success      200      {object}  response.Response{data=service.TokenPair}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	// Try reading refresh_token from cookie first, fallback to body
	refreshToken, cookieErr := c.Cookie("refresh_token")
	if cookieErr != nil || refreshToken == "" {
		var req service.RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
			return
		}
		refreshToken = req.RefreshToken
	}

	pair, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		status := statusFromErr(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	h.setCookies(c, pair)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pair))
}

// Logout handles POST /auth/logout to revoke the refresh token and clear cookies
// @Summary      Logout
// @Description  Revokes the presented refresh token and clears auth cookies
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken, cookieErr := c.Cookie("refresh_token")
	if cookieErr != nil || refreshToken == "" {
		var req service.RefreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}

	if err := h.authService.Logout(c.Request.Context(), refreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to log out"))
		return
	}

	middleware.ClearTokenCookies(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Logged out"))
}

// Profile handles GET /auth/profile returning the authenticated principal
// @Summary      Get profile
// @Description  Returns the authenticated principal's identity and current role
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=model.Principal}
// @Failure      401  {object}  response.Response
// @Router       /auth/profile [get]
func (h *AuthHandler) Profile(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Principal not found in context"))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, principal))
}

// ListTokens handles GET /auth/tokens listing the caller's access tokens
// @Summary      List tokens
// @Description  Lists the caller's access token records, newest first
// @Tags         tokens
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]model.AccessToken}
// @Failure      401  {object}  response.Response
// @Router       /auth/tokens [get]
func (h *AuthHandler) ListTokens(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Principal not found in context"))
		return
	}

	tokens, err := h.tokenService.ListUserTokens(c.Request.Context(), principal.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to fetch tokens"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokens))
}

// DeleteTokens handles DELETE /auth/tokens removing the caller's access tokens
// @Summary      Delete user tokens
// @Description  Deletes all of the caller's access tokens (logout everywhere)
// @Tags         tokens
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Router       /auth/tokens [delete]
func (h *AuthHandler) DeleteTokens(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Principal not found in context"))
		return
	}

	count, err := h.authService.RemoveUserTokens(c.Request.Context(), principal.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to remove tokens"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"message": fmt.Sprintf("%d user tokens were removed", count),
		"count":   count,
	}))
}

// DeleteExpiredTokens handles DELETE /auth/tokens/expired sweeping both token tables
// @Summary      Sweep expired tokens
// @Description  Bulk-deletes expired access and refresh tokens; idempotent and safe to repeat
// @Tags         tokens
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /auth/tokens/expired [delete]
func (h *AuthHandler) DeleteExpiredTokens(c *gin.Context) {
	access, refresh, err := h.authService.RemoveExpiredTokens(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to sweep expired tokens"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"message":         fmt.Sprintf("%d expired tokens were removed", access+refresh),
		"access_removed":  access,
		"refresh_removed": refresh,
	}))
}

// DeleteToken handles DELETE /auth/tokens/:id removing one owned token
// @Summary      Delete a token
// @Description  Deletes a single access token record owned by the caller
// @Tags         tokens
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Token ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /auth/tokens/{id} [delete]
func (h *AuthHandler) DeleteToken(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Principal not found in context"))
		return
	}

	tokenID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid token ID"))
		return
	}

	if err := h.tokenService.DeleteToken(c.Request.Context(), principal.ID, tokenID); err != nil {
		status := statusFromErr(err)
		c.JSON(status, response.Error(status, "Token not found or not owned by the user"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Token removed successfully"))
}

// VerifyToken handles GET /auth/tokens/verify with no side effects
// @Summary      Verify token
// @Description  Reports whether the bearer token is valid and still backed by a live record
// @Tags         tokens
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /auth/tokens/verify [get]
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	tokenString, ok := middleware.ExtractBearer(c.GetHeader("Authorization"))
	if !ok {
		c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
			"valid":   false,
			"message": "Token not provided or malformed. Use the format: Bearer <token>",
		}))
		return
	}

	valid := h.tokenService.ValidateToken(c.Request.Context(), tokenString)
	message := "Token is valid"
	if !valid {
		message = "Token is invalid or expired"
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"valid":   valid,
		"message": message,
	}))
}

// UserInfo handles GET /auth/tokens/user-info resolving a token to its user
// @Summary      Token user info
// @Description  Returns the owning user of a valid bearer token, minus credential fields
// @Tags         tokens
// @Produce      json
// @Success      200  {object}  response.Response{data=model.User}
// @Failure      401  {object}  response.Response
// @Router       /auth/tokens/user-info [get]
func (h *AuthHandler) UserInfo(c *gin.Context) {
	tokenString, ok := middleware.ExtractBearer(c.GetHeader("Authorization"))
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Token not provided or malformed. Use the format: Bearer <token>"))
		return
	}

	user, err := h.tokenService.UserInfo(c.Request.Context(), tokenString)
	if err != nil {
		status := statusFromErr(err)
		c.JSON(status, response.Error(status, "Token is invalid or expired"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

func (h *AuthHandler) setCookies(c *gin.Context, pair *service.TokenPair) {
	accessMaxAge := int(time.Until(pair.AccessExpiresAt).Seconds())
	refreshMaxAge := int(time.Until(pair.RefreshExpiresAt).Seconds())
	middleware.SetTokenCookies(c, pair.AccessToken, pair.RefreshToken, accessMaxAge, refreshMaxAge)
}
