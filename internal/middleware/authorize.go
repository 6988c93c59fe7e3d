package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/AlouiLouai/educ/internal/models"
	"github.com/AlouiLouai/educ/internal/repository"
)

func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	roleSet := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, exists := c.Get(ContextIdentity); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		role := CurrentRole(c)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "profile_required"})
			return
		}

		if _, ok := roleSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}

// RequireStoredRole runs after Gate on role-area pages. The gate may admit a
// caller on helper cookies alone; the page only serves data once the stored
// profile confirms the role.
func RequireStoredRole(profiles ProfileLookup, required models.Role, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentIdentity(c)
		if !ok {
			bounce(c, required)
			return
		}

		profile, err := profiles.GetByID(c.Request.Context(), user.ID)
		if err != nil {
			if !errors.Is(err, repository.ErrProfileNotFound) {
				log.Error().Err(err).Str("user_id", user.ID).Msg("load profile failed")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "profile_unavailable"})
				return
			}
			log.Warn().Str("user_id", user.ID).Str("required", string(required)).Msg("gate passed without a stored profile")
			bounce(c, required)
			return
		}
		if profile.Role != required {
			log.Warn().Str("user_id", user.ID).Str("role", string(profile.Role)).Str("required", string(required)).Msg("stored role does not match area")
			bounce(c, required)
			return
		}

		c.Set(ContextProfile, profile)
		c.Set(ContextRole, profile.Role)
		c.Next()
	}
}
