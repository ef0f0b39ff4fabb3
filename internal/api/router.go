package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gopan-drive/config"
	"gopan-drive/internal/ai"
	"gopan-drive/internal/auth"
	"gopan-drive/internal/drive"
	"gopan-drive/internal/events"
	"gopan-drive/internal/logger"
	"gopan-drive/internal/metrics"
	"gopan-drive/internal/middleware"
	"gopan-drive/internal/payment"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Config    *config.Config
	Auth      *auth.Service
	Drives    *drive.Registry
	Events    *events.Broadcaster
	Purchaser payment.Purchaser
	Analyzer  ai.Analyzer
}

// SetupRouter sets up all API routes
func SetupRouter(deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(), metrics.GinMiddleware())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "drives": deps.Drives.Len()})
	})
	if deps.Config.Server.Metrics {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	// Initialize handlers
	authHandler := NewAuthHandler(deps.Auth, deps.Drives)
	fileHandler := NewFileHandler(deps.Drives, deps.Analyzer)
	uploadHandler := NewUploadHandler(deps.Drives)
	capacityHandler := NewCapacityHandler(deps.Drives)
	vipHandler := NewVIPHandler(deps.Drives, deps.Purchaser)
	shareHandler := NewShareHandler(deps.Drives)
	previewHandler := NewPreviewHandler(deps.Drives, &deps.Config.Preview)
	eventsHandler := NewEventsHandler(deps.Events)

	authRequired := middleware.AuthMiddleware(&deps.Config.JWT)

	// Public routes
	api := router.Group("/api")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", authRequired, authHandler.Me)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(authRequired)
		{
			// File routes
			files := protected.Group("/files")
			{
				files.GET("", fileHandler.GetFiles)
				files.POST("/folder", fileHandler.CreateFolder)
				files.GET("/tree", fileHandler.GetFileTree)
				files.GET("/search", fileHandler.SearchFiles)
				files.GET("/trash", fileHandler.GetTrash)
				files.POST("/restore", fileHandler.RestoreFile)
				files.DELETE("/trash/:id", fileHandler.PermanentlyDelete)
				files.GET("/category/:category", fileHandler.GetCategory)
				files.PUT("/move", fileHandler.MoveFiles)
				files.GET("/:id", fileHandler.GetFile)
				files.GET("/:id/breadcrumbs", fileHandler.GetBreadcrumbs)
				files.PUT("/:id", fileHandler.RenameFile)
				files.DELETE("/:id", fileHandler.DeleteFile)
				files.POST("/:id/analyze", fileHandler.AnalyzeFile)
			}

			// Upload routes
			uploads := protected.Group("/uploads")
			{
				uploads.POST("", uploadHandler.StartUpload)
				uploads.GET("", uploadHandler.ListUploads)
				uploads.GET("/:id", uploadHandler.GetUpload)
				uploads.POST("/:id/advance", uploadHandler.AdvanceUpload)
				uploads.DELETE("/:id", uploadHandler.CancelUpload)
			}

			protected.GET("/capacity", capacityHandler.GetCapacity)

			// VIP routes
			vip := protected.Group("/vip")
			{
				vip.GET("/plans", vipHandler.GetPlans)
				vip.POST("/purchase", vipHandler.Purchase)
			}

			// Share routes
			shares := protected.Group("/shares")
			{
				shares.POST("", shareHandler.CreateShare)
				shares.DELETE("/:code", shareHandler.DeleteShare)
				shares.GET("", shareHandler.GetMyShares)
			}

			// Preview routes
			protected.GET("/preview/:id", previewHandler.GetPreview)

			// Live change feed
			protected.GET("/events", eventsHandler.Stream)
		}

		// Public share routes
		api.GET("/shares/:code", shareHandler.GetShare)
	}

	// Share links handed out to recipients
	router.GET("/s/:code", shareHandler.GetShare)

	return router
}
