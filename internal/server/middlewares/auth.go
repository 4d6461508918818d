package middlewares

import (
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/blake2b"

	"clipvault/internal/cverror"
)

// AuthCookieName is the cookie carrying the main application credential.
const AuthCookieName = "auth"

// AuthCookieValue derives the opaque cookie value issued by the verify
// endpoint: a keyed digest so the configured password itself never travels
// back and forth in a cookie.
func AuthCookieValue(key []byte) string {
	h, err := blake2b.New256(key)
	if err != nil {
		panic(err)
	}
	h.Write([]byte("clipvault-auth"))
	return hex.EncodeToString(h.Sum(nil))
}

// Auth returns the main credential middleware. It accepts the configured
// password as a bearer token or the derived auth cookie. Share-link passwords
// are handled by the share registry, not here.
func Auth(password string, cookieToken string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if password == "" {
				return cverror.New("Authentication not configured on server.")
			}

			if token := bearer(c.Request().Header.Get(echo.HeaderAuthorization)); token != "" {
				if SecureCompare(token, password) {
					return next(c)
				}
			}

			if cookie, err := c.Cookie(AuthCookieName); err == nil {
				if SecureCompare(cookie.Value, cookieToken) {
					return next(c)
				}
			}

			return cverror.Unauthorized("Invalid login credentials.")
		}
	}
}

func bearer(authorization string) string {
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) < 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

// SecureCompare compares the given strings in constant time so length info is
// not leaked via timing attacks.
func SecureCompare(s1, s2 string) bool {
	return subtle.ConstantTimeCompare([]byte(s1), []byte(s2)) == 1
}
