package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/AlouiLouai/educ/internal/identity"
	"github.com/AlouiLouai/educ/internal/metrics"
	"github.com/AlouiLouai/educ/internal/models"
)

type CachedRoles interface {
	Get(ctx context.Context, identityID string) (models.Role, error)
}

var gatedRoles = []models.Role{models.RoleStudent, models.RoleTeacher, models.RoleAdmin}

// RequiredRole returns the role a path is scoped to, or "" for open paths.
func RequiredRole(path string) models.Role {
	for _, role := range gatedRoles {
		root := role.Root()
		if path == root || strings.HasPrefix(path, root+"/") {
			return role
		}
	}
	return ""
}

// Gate guards the role-scoped page areas. Open paths skip the session
// lookup entirely. A caller without a session, without a profile, or with a
// different role is sent home with an auth hint.
func Gate(users UserResolver, roles CachedRoles, cookies CookieConfig, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		required := RequiredRole(c.Request.URL.Path)
		if required == "" {
			c.Next()
			return
		}

		token := SessionToken(c, cookies)
		if token == "" {
			bounce(c, required)
			return
		}

		ctx := c.Request.Context()
		user, err := users.GetUser(ctx, token)
		if err != nil {
			if !identity.IsSessionMissing(err) {
				log.Error().Err(err).Msg("gate session lookup failed")
			}
			bounce(c, required)
			return
		}

		role, hasProfile := resolveRole(ctx, c, user, roles, log)
		if !hasProfile || role != required {
			bounce(c, required)
			return
		}

		c.Set(ContextToken, token)
		c.Set(ContextIdentity, user)
		c.Set(ContextRole, role)
		c.Next()
	}
}

// resolveRole walks the cached profile role, the identity metadata and
// finally the helper cookies.
func resolveRole(ctx context.Context, c *gin.Context, user models.Identity, roles CachedRoles, log zerolog.Logger) (models.Role, bool) {
	cached, err := roles.Get(ctx, user.ID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("role cache read failed")
	}
	if cached.Valid() {
		return cached, true
	}

	role := user.AppMetadata.Role
	if !role.Valid() {
		role = user.UserMetadata.Role
	}
	if !role.Valid() {
		if v, err := c.Cookie(CookieRole); err == nil {
			role = models.Role(v)
		}
	}

	hasProfile := user.AppMetadata.Profile
	if !hasProfile {
		v, err := c.Cookie(CookieProfileExists)
		hasProfile = err == nil && v == "1"
	}
	return role, hasProfile && role.Valid()
}

func bounce(c *gin.Context, required models.Role) {
	metrics.GateRedirects.WithLabelValues(string(required)).Inc()
	c.Redirect(http.StatusFound, "/?auth="+string(required))
	c.Abort()
}
