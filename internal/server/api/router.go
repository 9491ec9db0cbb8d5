package api

import (
	"strconv"

	"mediavault/internal/server/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))
	e.Use(RequestLogger())
	e.Use(Authenticate(handler.accounts))

	// Rate limiter on credential and upload endpoints
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware()
	// Multipart overhead on top of the file itself
	uploadLimit := middleware.BodyLimit(strconv.FormatInt(cfg.MaxUploadSize+1<<20, 10))

	// Health & stats
	e.GET("/health", handler.HandleHealth)
	e.GET("/api/stats", handler.HandleStats)

	// Accounts
	e.POST("/api/auth/register", handler.HandleRegister, limiter)
	e.POST("/api/auth/login", handler.HandleLogin, limiter)
	e.GET("/api/me", handler.HandleMe)
	e.PATCH("/api/me", handler.HandleUpdateMe)
	e.DELETE("/api/me", handler.HandleDeleteMe)
	e.POST("/api/me/privacy", handler.HandleTogglePrivacy)
	e.POST("/api/me/username", handler.HandleUpdateUsername)
	e.GET("/api/users/search", handler.HandleSearchUsers)
	e.GET("/api/users/:username", handler.HandleProfile)

	// Browsing
	e.GET("/api/feed", handler.HandleFeed)
	e.GET("/api/search", handler.HandleSearch)

	// Media
	e.GET("/api/media", handler.HandleListMedia)
	e.POST("/api/media", handler.HandleUpload, limiter, uploadLimit)
	e.POST("/api/media/bulk-delete", handler.HandleBulkDelete)
	e.GET("/api/media/:id", handler.HandleGetMedia)
	e.PATCH("/api/media/:id", handler.HandleUpdateMedia)
	e.DELETE("/api/media/:id", handler.HandleDeleteMedia)
	e.POST("/api/media/:id/visibility/:action", handler.HandleMediaVisibility)

	// Folders
	e.GET("/api/folders", handler.HandleListFolders)
	e.POST("/api/folders", handler.HandleCreateFolder)
	e.GET("/api/folders/:id", handler.HandleGetFolder)
	e.PATCH("/api/folders/:id", handler.HandleUpdateFolder)
	e.DELETE("/api/folders/:id", handler.HandleDeleteFolder)
	e.POST("/api/folders/:id/visibility/:action", handler.HandleFolderVisibility)
	e.POST("/api/folders/:id/cover/:mediaId", handler.HandleFolderCover)

	// Social
	e.POST("/api/social/follow/:id", handler.HandleFollow)
	e.POST("/api/social/follow/accept/:id", handler.HandleAcceptFollow)
	e.POST("/api/social/follow/reject/:id", handler.HandleRejectFollow)
	e.POST("/api/social/like/:id", handler.HandleLike)
	e.POST("/api/social/favorite/:id", handler.HandleFavorite)
	e.GET("/api/social/reviews/:id", handler.HandleListReviews)
	e.POST("/api/social/reviews/:id", handler.HandleCreateReview)
	e.GET("/api/social/notifications", handler.HandleNotifications)
	e.POST("/api/social/notifications/read-all", handler.HandleReadAll)

	// Requests and reports
	e.POST("/api/upload-requests", handler.HandleRequestUpload)
	e.POST("/api/problems", handler.HandleReportProblem)

	// Admin
	admin := e.Group("/api/admin")
	admin.GET("/dashboard", handler.HandleDashboard)
	admin.GET("/users", handler.HandleAdminUsers)
	admin.PATCH("/users/:id", handler.HandleAdminUpdateUser)
	admin.GET("/media", handler.HandleAdminMedia)
	admin.GET("/upload-requests", handler.HandleAdminUploadRequests)
	admin.POST("/upload-requests/:id/:action", handler.HandleProcessUploadRequest)
	admin.GET("/problems", handler.HandleAdminProblems)
	admin.POST("/problems/:id/resolve", handler.HandleResolveProblem)

	// Download guard
	e.POST("/download/:id", handler.HandleDownload)
	e.GET("/api/downloads/quota", handler.HandleQuota)

	// Signed filesystem links
	if handler.links != nil {
		e.GET("/media/*", handler.HandleServeMedia)
	}

	return e
}
