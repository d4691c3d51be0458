// Package handler contains the HTTP host-integration surface.
package handler

import (
	"context"
	"net/http"
	"time"

	"geotrack/internal/engine"
	"geotrack/internal/types"
	"geotrack/internal/version"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Server holds handler dependencies.
type Server struct {
	DB            *gorm.DB
	Engine        *engine.Engine
	configManager types.ConfigManager
}

// NewServer creates a new handler server.
func NewServer(db *gorm.DB, eng *engine.Engine, configManager types.ConfigManager) *Server {
	return &Server{
		DB:            db,
		Engine:        eng,
		configManager: configManager,
	}
}

// Health returns the liveness status, verifying database connectivity.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	sqlDB, err := s.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		dbStatus = "unavailable"
	}

	status := http.StatusOK
	state := "healthy"
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"database":  dbStatus,
		"version":   version.Version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
