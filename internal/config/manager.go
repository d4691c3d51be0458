// Package config provides environment-backed configuration management.
package config

import (
	"fmt"
	"os"

	"geotrack/internal/types"
	"geotrack/internal/utils"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Constants for configuration validation
const (
	minPort = 1
	maxPort = 65535
)

// Manager implements types.ConfigManager on top of environment variables.
type Manager struct {
	config *Config
}

// Config represents the full application configuration loaded from the environment.
type Config struct {
	Server   types.ServerConfig
	Auth     types.AuthConfig
	CORS     types.CORSConfig
	Log      types.LogConfig
	Database types.DatabaseConfig
	Engine   types.EngineConfig
	RedisDSN string
}

// NewManager creates a new configuration manager. A .env file in the working
// directory is honored but not required.
func NewManager() (types.ConfigManager, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using system environment variables")
	}

	manager := &Manager{}
	if err := manager.ReloadConfig(); err != nil {
		return nil, err
	}
	return manager, nil
}

// ReloadConfig re-reads the environment into the manager.
func (m *Manager) ReloadConfig() error {
	config := &Config{
		Server: types.ServerConfig{
			Port:                    utils.ParseInteger(os.Getenv("PORT"), 8080),
			Host:                    utils.GetEnvOrDefault("HOST", "0.0.0.0"),
			ReadTimeout:             utils.ParseInteger(os.Getenv("SERVER_READ_TIMEOUT"), 60),
			WriteTimeout:            utils.ParseInteger(os.Getenv("SERVER_WRITE_TIMEOUT"), 60),
			IdleTimeout:             utils.ParseInteger(os.Getenv("SERVER_IDLE_TIMEOUT"), 120),
			GracefulShutdownTimeout: utils.ParseInteger(os.Getenv("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT"), 10),
		},
		Auth: types.AuthConfig{
			Key: os.Getenv("AUTH_KEY"),
		},
		CORS: types.CORSConfig{
			Enabled:          utils.ParseBoolean(os.Getenv("ENABLE_CORS"), false),
			AllowedOrigins:   utils.ParseArray(os.Getenv("ALLOWED_ORIGINS"), []string{"*"}),
			AllowedMethods:   utils.ParseArray(os.Getenv("ALLOWED_METHODS"), []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   utils.ParseArray(os.Getenv("ALLOWED_HEADERS"), []string{"*"}),
			AllowCredentials: utils.ParseBoolean(os.Getenv("ALLOW_CREDENTIALS"), false),
		},
		Log: types.LogConfig{
			Level:      utils.GetEnvOrDefault("LOG_LEVEL", "info"),
			Format:     utils.GetEnvOrDefault("LOG_FORMAT", "text"),
			EnableFile: utils.ParseBoolean(os.Getenv("LOG_ENABLE_FILE"), false),
			FilePath:   utils.GetEnvOrDefault("LOG_FILE_PATH", "./data/logs/app.log"),
		},
		Database: types.DatabaseConfig{
			DSN: utils.GetEnvOrDefault("DATABASE_DSN", "./data/geotrack.db"),
		},
		Engine: types.EngineConfig{
			DefaultRadiusMeters:    utils.ParseFloat(os.Getenv("GEOFENCE_DEFAULT_RADIUS_METERS"), 50),
			MinRadiusMeters:        utils.ParseFloat(os.Getenv("GEOFENCE_MIN_RADIUS_METERS"), 30),
			HysteresisFactor:       utils.ParseFloat(os.Getenv("GEOFENCE_HYSTERESIS_FACTOR"), 1.3),
			DedupWindowSeconds:     utils.ParseInteger(os.Getenv("EVENT_DEDUP_WINDOW_SECONDS"), 10),
			DefaultStartDelayMin:   utils.ParseInteger(os.Getenv("DEFAULT_START_DELAY_MINUTES"), 0),
			DefaultStopDelayMin:    utils.ParseInteger(os.Getenv("DEFAULT_STOP_DELAY_MINUTES"), 2),
			TransitionHistoryLimit: utils.ParseInteger(os.Getenv("TRANSITION_HISTORY_LIMIT"), 50),
		},
		RedisDSN: os.Getenv("REDIS_DSN"),
	}

	m.config = config
	return m.Validate()
}

// Validate checks the loaded configuration for obvious misconfiguration.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port < minPort || config.Server.Port > maxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", minPort, maxPort, config.Server.Port)
	}
	if config.Auth.Key == "" {
		return fmt.Errorf("AUTH_KEY is required")
	}
	if config.Database.DSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if config.Engine.HysteresisFactor < 1.0 {
		return fmt.Errorf("hysteresis factor cannot be less than 1.0, got %v", config.Engine.HysteresisFactor)
	}
	if config.Engine.MinRadiusMeters <= 0 {
		return fmt.Errorf("minimum geofence radius must be positive, got %v", config.Engine.MinRadiusMeters)
	}
	if config.Engine.DefaultRadiusMeters < config.Engine.MinRadiusMeters {
		return fmt.Errorf("default geofence radius %v is below the minimum %v",
			config.Engine.DefaultRadiusMeters, config.Engine.MinRadiusMeters)
	}
	if config.Engine.DedupWindowSeconds < 1 {
		return fmt.Errorf("event dedup window cannot be less than 1 second")
	}
	if config.Engine.TransitionHistoryLimit < 1 {
		return fmt.Errorf("transition history limit cannot be less than 1")
	}
	if config.Engine.DefaultStartDelayMin < 0 || config.Engine.DefaultStopDelayMin < 0 {
		return fmt.Errorf("default delays cannot be negative")
	}
	return nil
}

// GetAuthConfig returns authentication configuration
func (m *Manager) GetAuthConfig() types.AuthConfig {
	return m.config.Auth
}

// GetCORSConfig returns CORS configuration
func (m *Manager) GetCORSConfig() types.CORSConfig {
	return m.config.CORS
}

// GetLogConfig returns logging configuration
func (m *Manager) GetLogConfig() types.LogConfig {
	return m.config.Log
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() types.DatabaseConfig {
	return m.config.Database
}

// GetEngineConfig returns the auto-timer policy configuration
func (m *Manager) GetEngineConfig() types.EngineConfig {
	return m.config.Engine
}

// GetEffectiveServerConfig returns server configuration
func (m *Manager) GetEffectiveServerConfig() types.ServerConfig {
	return m.config.Server
}

// GetRedisDSN returns the Redis DSN, empty when the in-memory store is used
func (m *Manager) GetRedisDSN() string {
	return m.config.RedisDSN
}

// IsDebugMode reports whether debug logging was requested
func (m *Manager) IsDebugMode() bool {
	return m.config.Log.Level == "debug" || utils.ParseBoolean(os.Getenv("DEBUG_MODE"), false)
}

// DisplayServerConfig logs a condensed view of the effective configuration.
func (m *Manager) DisplayServerConfig() {
	server := m.config.Server
	engine := m.config.Engine

	storeType := "memory"
	if m.config.RedisDSN != "" {
		storeType = "redis"
	}

	logrus.Info("")
	logrus.Info("======= Server Configuration =======")
	logrus.Infof("  Listen address: %s:%d", server.Host, server.Port)
	logrus.Infof("  Database DSN: %s", m.config.Database.DSN)
	logrus.Infof("  Store backend: %s", storeType)
	logrus.Infof("  Log level: %s", m.config.Log.Level)
	logrus.Info("======= Engine Configuration =======")
	logrus.Infof("  Geofence radius: default %.0fm, floor %.0fm", engine.DefaultRadiusMeters, engine.MinRadiusMeters)
	logrus.Infof("  Hysteresis factor: %.2f", engine.HysteresisFactor)
	logrus.Infof("  Event dedup window: %ds", engine.DedupWindowSeconds)
	logrus.Infof("  Default delays: start %dm, stop %dm", engine.DefaultStartDelayMin, engine.DefaultStopDelayMin)
	logrus.Info("====================================")
	logrus.Info("")
}
