package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AlouiLouai/educ/internal/identity"
	"github.com/AlouiLouai/educ/internal/middleware"
	"github.com/AlouiLouai/educ/internal/models"
	"github.com/AlouiLouai/educ/internal/service"
)

// Login starts the provider round-trip. The hints ride along with the state
// and are validated by the callback, not here.
func (h HandlerSet) Login(c *gin.Context) {
	url, err := h.identity.LoginURL(c.Request.Context(), identity.Hints{
		Next: c.Query("next"),
		Role: c.Query("role"),
		Mode: c.Query("mode"),
	})
	if err != nil {
		h.log.Error().Err(err).Msg("issue oauth state failed")
		c.Redirect(http.StatusFound, "/?error=auth_failed")
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (h HandlerSet) Callback(c *gin.Context) {
	res := h.auth.Callback(c.Request.Context(), service.CallbackInput{
		Code:          c.Query("code"),
		State:         c.Query("state"),
		Next:          c.Query("next"),
		RequestedRole: c.Query("role"),
		Mode:          c.Query("mode"),
	})

	if res.ClearSession {
		middleware.ClearAuthCookies(c, h.cookies)
	}
	if res.SessionToken != "" {
		middleware.SetSessionCookie(c, h.cookies, res.SessionToken)
	}
	if res.Cookies != nil {
		middleware.SetHelperCookies(c, h.cookies, res.Cookies.Role, res.Cookies.ProfileExists)
	}

	c.Redirect(http.StatusFound, res.Redirect)
}

func (h HandlerSet) SignOut(c *gin.Context) {
	if err := h.auth.SignOut(c.Request.Context(), middleware.SessionToken(c, h.cookies)); err != nil {
		h.log.Warn().Err(err).Msg("sign out failed")
	}
	middleware.ClearAuthCookies(c, h.cookies)
	c.Redirect(http.StatusFound, "/")
}

func (h HandlerSet) DeleteAccount(c *gin.Context) {
	_, err := h.auth.DeleteAccount(c.Request.Context(), middleware.SessionToken(c, h.cookies))
	if err != nil {
		if !errors.Is(err, service.ErrDeleteFailed) {
			h.log.Error().Err(err).Msg("delete account failed")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}

	middleware.ClearAuthCookies(c, h.cookies)
	c.Redirect(http.StatusFound, "/")
}

func (h HandlerSet) Me(c *gin.Context) {
	user, _ := middleware.CurrentIdentity(c)

	var profile *models.Profile
	if p, ok := middleware.CurrentProfile(c); ok {
		profile = &p
	}
	c.JSON(http.StatusOK, gin.H{"user": service.BuildConnectedUser(user, profile)})
}
