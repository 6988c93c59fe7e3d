package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AlouiLouai/educ/internal/models"
	"github.com/AlouiLouai/educ/internal/repository"
)

type profileResponse struct {
	ID        string  `json:"id"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Role      string  `json:"role"`
	AvatarURL *string `json:"avatarUrl"`
}

func (h HandlerSet) AdminStats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("admin stats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h HandlerSet) AdminListProfiles(c *gin.Context) {
	role := models.Role(c.Query("role"))
	if role != "" && !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role"})
		return
	}

	limit, offset := pagination(c)
	profiles, err := h.admin.ListProfiles(c.Request.Context(), role, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("list profiles failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	items := make([]profileResponse, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, profileResponse{
			ID:        p.ID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Email:     p.Email,
			Role:      string(p.Role),
			AvatarURL: p.AvatarURL,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h HandlerSet) AdminSetRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil || !models.Role(req.Role).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role"})
		return
	}

	if err := h.admin.SetRole(c.Request.Context(), c.Param("id"), models.Role(req.Role)); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.log.Error().Err(err).Msg("set role failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) AdminListDocuments(c *gin.Context) {
	limit, offset := pagination(c)
	docs, err := h.admin.ListDocuments(c.Request.Context(), limit, offset)
	if err != nil {
		h.documentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toDocumentResponses(docs)})
}
