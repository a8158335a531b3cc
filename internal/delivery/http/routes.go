package http

import (
	"github.com/gin-gonic/gin"
	"github.com/tcgvault/backend/config"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		imports := v1.Group("/imports")
		{
			imports.POST("/parse", handler.ParseCSV)
			imports.POST("", handler.StartImport)
			imports.GET("/:id", handler.GetImport)
			imports.GET("/:id/events", handler.StreamEvents)
			imports.POST("/:id/cancel", handler.CancelImport)
			imports.POST("/:id/commit", handler.CommitImport)
			imports.GET("/:id/failed.csv", handler.FailedCSV)
		}
	}

	return router
}
