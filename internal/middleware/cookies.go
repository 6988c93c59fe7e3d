package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AlouiLouai/educ/internal/models"
)

// Helper cookies are a client-readable cache of identity facts. They are
// never authoritative.
const (
	CookieRole          = "role"
	CookieProfileExists = "profile-exists"
	CookieAuthenticated = "authenticated"

	helperCookieMaxAge = 60 * 60 * 24 * 30
)

type CookieConfig struct {
	SessionName   string
	SessionMaxAge int
	Secure        bool
}

func SetSessionCookie(c *gin.Context, cfg CookieConfig, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cfg.SessionName,
		Value:    token,
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func SetHelperCookies(c *gin.Context, cfg CookieConfig, role models.Role, profileExists bool) {
	setHelper(c, cfg, CookieRole, string(role), helperCookieMaxAge)
	if profileExists {
		setHelper(c, cfg, CookieProfileExists, "1", helperCookieMaxAge)
	} else {
		setHelper(c, cfg, CookieProfileExists, "", -1)
	}
	setHelper(c, cfg, CookieAuthenticated, "1", helperCookieMaxAge)
}

// ClearAuthCookies expires the session cookie and every helper cookie.
func ClearAuthCookies(c *gin.Context, cfg CookieConfig) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cfg.SessionName,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	for _, name := range []string{CookieRole, CookieProfileExists, CookieAuthenticated} {
		setHelper(c, cfg, name, "", -1)
	}
}

func setHelper(c *gin.Context, cfg CookieConfig, name, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken reads the session from its cookie, or from a bearer header for
// API clients.
func SessionToken(c *gin.Context, cfg CookieConfig) string {
	if token, err := c.Cookie(cfg.SessionName); err == nil && token != "" {
		return token
	}
	const prefix = "Bearer "
	if header := c.GetHeader("Authorization"); len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
