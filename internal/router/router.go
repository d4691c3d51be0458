// Package router wires HTTP routes to handlers.
package router

import (
	"geotrack/internal/handler"
	"geotrack/internal/middleware"
	"geotrack/internal/types"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

func NewRouter(serverHandler *handler.Server, configManager types.ConfigManager) *gin.Engine {
	if !configManager.IsDebugMode() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger(configManager.GetLogConfig()))
	router.Use(middleware.CORS(configManager.GetCORSConfig()))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerSystemRoutes(router, serverHandler)
	registerAPIRoutes(router, serverHandler, configManager)

	return router
}

func registerSystemRoutes(router *gin.Engine, serverHandler *handler.Server) {
	router.GET("/health", serverHandler.Health)
}

func registerAPIRoutes(router *gin.Engine, serverHandler *handler.Server, configManager types.ConfigManager) {
	api := router.Group("/api")
	api.Use(middleware.Auth(configManager.GetAuthConfig()))

	sites := api.Group("/sites")
	{
		sites.POST("", serverHandler.CreateSite)
		sites.GET("", serverHandler.ListSites)
		sites.PUT("/:id", serverHandler.UpdateSite)
		sites.DELETE("/:id", serverHandler.DeleteSite)
	}

	// Engine inputs
	api.POST("/location", serverHandler.PostLocation)
	api.POST("/callback/geofence", serverHandler.GeofenceCallback)
	api.POST("/app/foreground", serverHandler.AppForeground)

	// Engine controls and provider policy
	api.POST("/engine/enabled", serverHandler.SetEngineEnabled)
	api.GET("/tracking/config", serverHandler.GetTrackingConfig)

	// Manual session controls
	session := api.Group("/session")
	{
		session.POST("/start", serverHandler.StartSession)
		session.POST("/pause", serverHandler.PauseSession)
		session.POST("/resume", serverHandler.ResumeSession)
		session.POST("/stop", serverHandler.StopSession)
	}

	// Read surface
	api.GET("/status", serverHandler.GetStatus)
	api.GET("/transitions", serverHandler.ListTransitions)
	api.GET("/records", serverHandler.ListRecords)
}
