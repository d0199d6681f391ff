package api

import (
	"log/slog"

	"heatbridge/internal/api/handlers"
	"heatbridge/internal/api/middleware"

	"github.com/gin-gonic/gin"
)

// RouterConfig holds dependencies for the API router
type RouterConfig struct {
	Bridge handlers.Bridge
	Hub    *StreamHub
	APIKey string
	Logger *slog.Logger
}

// NewRouter creates and configures the Gin router
func NewRouter(config RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(config.Logger))
	router.Use(middleware.Logging(config.Logger))
	router.Use(middleware.ContentType())

	// Health check (no auth)
	healthHandler := handlers.NewHealthHandler()
	router.GET("/health", healthHandler.GetHealth)

	// API v1 routes (with authentication)
	v1 := router.Group("/v1")
	v1.Use(authMiddleware(config.APIKey))
	{
		devicesHandler := handlers.NewDevicesHandler(config.Bridge, config.Logger)
		v1.GET("/devices", devicesHandler.ListDevices)
		v1.GET("/devices/:id/snapshot", devicesHandler.GetSnapshot)
		v1.GET("/devices/:id/snapshot/fast", devicesHandler.GetFastSnapshot)
		v1.POST("/devices/:id/refresh", devicesHandler.RequestRefresh)

		commandsHandler := handlers.NewCommandsHandler(config.Bridge, config.Logger)
		v1.POST("/devices/:id/settings", commandsHandler.SetSetting)
		v1.POST("/devices/:id/smartcontrol", commandsHandler.SetSmartControl)
		v1.POST("/devices/:id/extra-hot-water", commandsHandler.SetExtraHotWater)
		v1.POST("/devices/:id/elevate", commandsHandler.ElevateAccess)
		v1.GET("/devices/:id/auto-elevate", commandsHandler.GetAutoElevate)
		v1.PUT("/devices/:id/auto-elevate", commandsHandler.SetAutoElevate)

		if config.Hub != nil {
			v1.GET("/stream", config.Hub.HandleStream)
		}
	}

	return router
}

// authMiddleware verifies API key authentication
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-Bridge-Key")
		if providedKey != apiKey {
			c.JSON(401, gin.H{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
