package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AlouiLouai/educ/internal/middleware"
	"github.com/AlouiLouai/educ/internal/models"
)

// The role-area pages serve the data their dashboards render. Gate and
// RequireStoredRole have matched the stored role by the time these run.

func (h HandlerSet) StudentDashboard(c *gin.Context) {
	user, _ := middleware.CurrentIdentity(c)
	docs, err := h.documents.ListPublished(c.Request.Context(), models.DocumentFilter{
		Grade:   c.Query("grade"),
		Subject: c.Query("subject"),
		Query:   c.Query("q"),
	})
	if err != nil {
		h.documentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":  user.ID,
		"catalog": toDocumentResponses(docs),
	})
}

func (h HandlerSet) TeacherDashboard(c *gin.Context) {
	user, _ := middleware.CurrentIdentity(c)
	dash, err := h.admin.TeacherDashboard(c.Request.Context(), user.ID)
	if err != nil {
		h.documentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":    user.ID,
		"documents": toDocumentResponses(dash.Documents),
		"counts":    dash.Counts,
	})
}

func (h HandlerSet) AdminDashboard(c *gin.Context) {
	dash, err := h.admin.AdminDashboard(c.Request.Context())
	if err != nil {
		h.documentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":  dash.Stats,
		"recent": toDocumentResponses(dash.Recent),
	})
}
