package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/AlouiLouai/educ/internal/config"
	"github.com/AlouiLouai/educ/internal/identity"
	"github.com/AlouiLouai/educ/internal/middleware"
	"github.com/AlouiLouai/educ/internal/models"
	"github.com/AlouiLouai/educ/internal/service"
)

// IdentityGateway is the slice of identity.Service the HTTP layer calls directly.
type IdentityGateway interface {
	LoginURL(ctx context.Context, hints identity.Hints) (string, error)
	GetUser(ctx context.Context, token string) (models.Identity, error)
}

type HealthCheck func(ctx context.Context) error

type Dependencies struct {
	Identity  IdentityGateway
	Auth      *service.AuthService
	Documents *service.DocumentService
	Admin     *service.AdminService
	Profiles  middleware.ProfileLookup
	Roles     middleware.CachedRoles
	Database  HealthCheck
	Cache     HealthCheck
}

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	cookies   middleware.CookieConfig
	identity  IdentityGateway
	auth      *service.AuthService
	documents *service.DocumentService
	admin     *service.AdminService
	profiles  middleware.ProfileLookup
	roles     middleware.CachedRoles
	database  HealthCheck
	cache     HealthCheck
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Dependencies) HandlerSet {
	return HandlerSet{
		log: log,
		cfg: cfg,
		cookies: middleware.CookieConfig{
			SessionName:   cfg.Session.CookieName,
			SessionMaxAge: int(cfg.Session.TTL.Seconds()),
			Secure:        cfg.Session.Secure,
		},
		identity:  deps.Identity,
		auth:      deps.Auth,
		documents: deps.Documents,
		admin:     deps.Admin,
		profiles:  deps.Profiles,
		roles:     deps.Roles,
		database:  deps.Database,
		cache:     deps.Cache,
	}
}

// Gate is installed globally so unknown paths under a role area are gated too.
func (h HandlerSet) Gate() gin.HandlerFunc {
	return middleware.Gate(h.identity, h.roles, h.cookies, h.log)
}

func (h HandlerSet) Register(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/auth")
	auth.GET("/login", h.Login)
	auth.GET("/callback", h.Callback)
	auth.POST("/signout", h.SignOut)
	auth.POST("/delete-account", h.DeleteAccount)

	router.GET("/student", middleware.RequireStoredRole(h.profiles, models.RoleStudent, h.log), h.StudentDashboard)
	router.GET("/teacher", middleware.RequireStoredRole(h.profiles, models.RoleTeacher, h.log), h.TeacherDashboard)
	router.GET("/admin", middleware.RequireStoredRole(h.profiles, models.RoleAdmin, h.log), h.AdminDashboard)

	api := router.Group("/api")
	api.GET("/healthz", h.Health)

	v1 := api.Group("/v1")
	v1.GET("/catalog", h.Catalog)

	authed := v1.Group("")
	authed.Use(middleware.Auth(h.identity, h.profiles, h.cookies, h.log))
	authed.GET("/me", h.Me)

	docs := authed.Group("/documents")
	docs.Use(middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin))
	docs.POST("", middleware.RequireRoles(models.RoleTeacher), h.UploadDocuments)
	docs.GET("", h.ListDocuments)
	docs.PATCH("/:id/status", h.UpdateDocumentStatus)
	docs.GET("/:id/download", h.DownloadDocument)
	docs.DELETE("/:id", h.DeleteDocument)

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/stats", h.AdminStats)
	admin.GET("/profiles", h.AdminListProfiles)
	admin.PATCH("/profiles/:id/role", h.AdminSetRole)
	admin.GET("/documents", h.AdminListDocuments)
}

func pagination(c *gin.Context) (int, int) {
	limit := 20
	offset := 0

	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}
	return limit, offset
}

func actor(c *gin.Context) service.Actor {
	user, _ := middleware.CurrentIdentity(c)
	return service.Actor{ID: user.ID, Role: middleware.CurrentRole(c)}
}
