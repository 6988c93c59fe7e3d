package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/AlouiLouai/educ/internal/identity"
	"github.com/AlouiLouai/educ/internal/models"
	"github.com/AlouiLouai/educ/internal/repository"
)

const (
	ContextToken    = "session_token"
	ContextIdentity = "current_identity"
	ContextProfile  = "current_profile"
	ContextRole     = "current_role"
)

type UserResolver interface {
	GetUser(ctx context.Context, token string) (models.Identity, error)
}

type ProfileLookup interface {
	GetByID(ctx context.Context, id string) (models.Profile, error)
}

// Auth requires a live session and loads the caller's profile. The stored
// profile is the only source of the role on API routes.
func Auth(users UserResolver, profiles ProfileLookup, cookies CookieConfig, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c, cookies)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_session"})
			return
		}

		user, err := users.GetUser(c.Request.Context(), token)
		if err != nil {
			if !identity.IsSessionMissing(err) {
				log.Error().Err(err).Msg("resolve session failed")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_session"})
			return
		}

		c.Set(ContextToken, token)
		c.Set(ContextIdentity, user)

		profile, err := profiles.GetByID(c.Request.Context(), user.ID)
		switch {
		case err == nil:
			c.Set(ContextProfile, profile)
			c.Set(ContextRole, profile.Role)
		case errors.Is(err, repository.ErrProfileNotFound):
			c.Set(ContextRole, models.Role(""))
		default:
			log.Error().Err(err).Str("user_id", user.ID).Msg("load profile failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "profile_unavailable"})
			return
		}

		c.Next()
	}
}

func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	val, ok := c.Get(ContextIdentity)
	if !ok {
		return models.Identity{}, false
	}
	user, ok := val.(models.Identity)
	return user, ok
}

func CurrentProfile(c *gin.Context) (models.Profile, bool) {
	val, ok := c.Get(ContextProfile)
	if !ok {
		return models.Profile{}, false
	}
	profile, ok := val.(models.Profile)
	return profile, ok
}

func CurrentRole(c *gin.Context) models.Role {
	val, _ := c.Get(ContextRole)
	role, _ := val.(models.Role)
	return role
}
