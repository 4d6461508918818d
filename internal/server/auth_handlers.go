package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"clipvault/internal/cverror"
	"clipvault/internal/server/middlewares"
)

// auth contains the main application authentication handlers. This is the
// thin cookie collaborator: the core performs no credential checking itself
// except share-link passwords.
type auth struct {
	password    string
	cookieToken string
	cookieTTL   time.Duration
}

///// Verify
////
//

// Verify checks the main password and issues the auth cookie.
func (h *auth) Verify(c echo.Context) error {
	if h.password == "" {
		return cverror.New("Authentication not configured on server.")
	}

	// Filter params
	var params struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&params); err != nil {
		return cverror.BadRequest("Could not get credentials.")
	}

	if !middlewares.SecureCompare(params.Password, h.password) {
		return cverror.Unauthorized("Invalid password.")
	}

	c.SetCookie(&http.Cookie{
		Name:     middlewares.AuthCookieName,
		Value:    h.cookieToken,
		MaxAge:   int(h.cookieTTL.Seconds()),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecure(c),
	})
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

///// Logout
////
//

// Logout expires the auth cookie.
func (h *auth) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     middlewares.AuthCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecure(c),
	})
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func isSecure(c echo.Context) bool {
	if c.IsTLS() {
		return true
	}
	proto := c.Request().Header.Get(echo.HeaderXForwardedProto)
	return strings.EqualFold(proto, "https")
}
