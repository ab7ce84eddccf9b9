package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gkintu/hukasa-staging-sub001/internal/audit"
	"github.com/gkintu/hukasa-staging-sub001/internal/cache"
	"github.com/gkintu/hukasa-staging-sub001/internal/config"
	"github.com/gkintu/hukasa-staging-sub001/internal/deletion"
	"github.com/gkintu/hukasa-staging-sub001/internal/middleware"
	"github.com/gkintu/hukasa-staging-sub001/internal/models"
	"github.com/gkintu/hukasa-staging-sub001/internal/ratelimit"
	"github.com/gkintu/hukasa-staging-sub001/internal/repository"
	"github.com/gkintu/hukasa-staging-sub001/internal/service"
	"github.com/gkintu/hukasa-staging-sub001/internal/signedurl"
	"github.com/gkintu/hukasa-staging-sub001/internal/staging"
	"github.com/gkintu/hukasa-staging-sub001/internal/storage"
)

type HandlerSet struct {
	log          zerolog.Logger
	cfg          *config.AppConfig
	authService  *service.AuthService
	imageService *service.ImageService
	policy       *deletion.Policy
	signer       *signedurl.Signer
	limiter      ratelimit.Limiter
	auditor      *audit.Recorder
	db           *pgxpool.Pool
	cache        *redis.Client
	files        *storage.FileStore
	users        *repository.UserRepository
	sessions     *repository.SessionRepository
	images       *repository.ImageRepository
	projects     *repository.ProjectRepository
	audits       *repository.AuditRepository
}

func NewHandlerSet(
	log zerolog.Logger,
	db *pgxpool.Pool,
	redisClient *redis.Client,
	files *storage.FileStore,
	dispatcher *staging.Dispatcher,
	limiter ratelimit.Limiter,
	cfg *config.AppConfig,
) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	imageRepo := repository.NewImageRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	summaries := cache.NewSummaryCache(redisClient)
	authSvc := service.NewAuthService(userRepo, sessionRepo, cfg, log)
	imageSvc := service.NewImageService(imageRepo, files, dispatcher, summaries, log)
	policy := deletion.NewPolicy(imageRepo, files, summaries, log)
	signer := signedurl.NewSigner(cfg.Security.SignedURLSecret)
	auditor := audit.NewRecorder(auditRepo, log)

	return HandlerSet{
		log:          log,
		cfg:          cfg,
		authService:  authSvc,
		imageService: imageSvc,
		policy:       policy,
		signer:       signer,
		limiter:      limiter,
		auditor:      auditor,
		db:           db,
		cache:        redisClient,
		files:        files,
		users:        userRepo,
		sessions:     sessionRepo,
		images:       imageRepo,
		projects:     projectRepo,
		audits:       auditRepo,
	}
}

func (h HandlerSet) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)

	authed := middleware.Auth(h.cfg, h.users, h.sessions)

	protected := v1.Group("/auth")
	protected.Use(authed)
	protected.POST("/logout", h.Logout)
	protected.GET("/me", h.Me)

	projects := v1.Group("/projects")
	projects.Use(authed)
	projects.POST("", h.CreateProject)
	projects.GET("", h.ListProjects)
	projects.GET("/:id/images", h.ListProjectImages)
	projects.PATCH("/:id", h.RenameProject)
	projects.DELETE("/:id", h.DeleteProject)

	images := v1.Group("/images")
	images.Use(authed)
	images.POST("", h.UploadImage)
	images.GET("", h.ListImages)
	images.GET("/:id", h.GetImage)
	images.PATCH("/:id", h.UpdateImage)
	images.POST("/:id/stage", h.RequestStaging)
	images.DELETE("/:id", h.DeleteImage)

	variants := v1.Group("/variants")
	variants.Use(authed)
	variants.DELETE("/:id", h.DeleteVariant)

	files := v1.Group("/files")
	files.Use(authed)
	files.GET("/:id/url", h.IssueFileURL)

	// Signed-URL access carries its own capability; no session required.
	v1.GET("/public/files/:id", h.ServeSignedFile)

	admin := v1.Group("/admin")
	admin.Use(authed, middleware.RequireRoles(models.UserRoleAdmin, models.UserRoleSuperAdmin))
	admin.GET("/users", h.AdminListUsers)
	admin.PATCH("/users/:id/status", h.AdminSetUserStatus)
	admin.GET("/images", h.AdminListImages)
	admin.DELETE("/images/:id", h.AdminDeleteImage)
	admin.GET("/audit", h.AdminListAudit)
}

func currentUser(c *gin.Context) (models.User, bool) {
	userVal, exists := c.Get("current_user")
	if !exists {
		return models.User{}, false
	}
	user, ok := userVal.(models.User)
	return user, ok
}
