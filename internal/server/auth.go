package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/folio/internal/content"
	"github.com/mohammad-safakhou/folio/internal/runtime"
	"github.com/mohammad-safakhou/folio/internal/store"
	"github.com/mohammad-safakhou/folio/internal/tasks"
)

type AuthHandler struct {
	Creds    *runtime.Credentials
	Issuer   *runtime.TokenIssuer
	Activity content.ActivityLog
	Tasks    tasks.Dispatcher
}

// Register mounts login under the login rate-limit bucket and logout behind auth.
func (a *AuthHandler) Register(g *echo.Group, loginLimit, requireAuth echo.MiddlewareFunc) {
	g.POST("/login", a.login, loginLimit)
	g.POST("/logout", a.logout, requireAuth)
}

// Login
//
//	@Summary	Operator login
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		LoginRequest	true	"Credentials"
//	@Success	200		{object}	LoginResponse
//	@Failure	400		{object}	HTTPError
//	@Failure	401		{object}	HTTPError
//	@Router		/api/v1/auth/login [post]
func (a *AuthHandler) login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password required")
	}
	if err := a.Creds.Verify(req.Username, req.Password); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}
	username := a.Creds.Username()
	token, _, err := a.Issuer.Issue(username, runtime.RoleAdmin)
	if err != nil {
		return err
	}
	content.RecordActivity(a.Tasks, a.Activity, store.Activity{
		Type:         "login",
		UserID:       username,
		ResourceType: "auth",
		Details:      map[string]any{"ip": c.RealIP()},
	})
	return c.JSON(http.StatusOK, LoginResponse{
		Status: statusSuccess,
		Token:  token,
		User:   UserInfo{UID: username, Username: username, Role: runtime.RoleAdmin},
	})
}

// Logout is stateless; the client discards its token.
//
//	@Summary	Logout
//	@Tags		auth
//	@Security	BearerAuth
//	@Success	200	{object}	MessageResponse
//	@Router		/api/v1/auth/logout [post]
func (a *AuthHandler) logout(c echo.Context) error {
	return c.JSON(http.StatusOK, MessageResponse{Status: statusSuccess, Message: "Logged out"})
}

// actor returns the authenticated username set by the auth middleware.
func actor(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok {
		return v
	}
	if v, ok := runtime.SubjectFromContext(c.Request().Context()); ok {
		return v
	}
	return ""
}
