package types

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetAuthConfig() AuthConfig
	GetCORSConfig() CORSConfig
	GetLogConfig() LogConfig
	GetDatabaseConfig() DatabaseConfig
	GetEngineConfig() EngineConfig
	GetEffectiveServerConfig() ServerConfig
	GetRedisDSN() string
	IsDebugMode() bool
	Validate() error
	DisplayServerConfig()
	ReloadConfig() error
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port                    int    `json:"port"`
	Host                    string `json:"host"`
	ReadTimeout             int    `json:"read_timeout"`
	WriteTimeout            int    `json:"write_timeout"`
	IdleTimeout             int    `json:"idle_timeout"`
	GracefulShutdownTimeout int    `json:"graceful_shutdown_timeout"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Key string `json:"key"`
}

// CORSConfig represents CORS configuration
type CORSConfig struct {
	Enabled          bool     `json:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	EnableFile bool   `json:"enable_file"`
	FilePath   string `json:"file_path"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

// EngineConfig carries the auto-timer policy knobs. The defaults reproduce
// the reference behavior: 50m geofence radius with a 30m floor, exit radius
// at 1.3x the entry radius, a 10 second event dedup window, and a 50-entry
// transition history.
type EngineConfig struct {
	DefaultRadiusMeters    float64 `json:"default_radius_meters"`
	MinRadiusMeters        float64 `json:"min_radius_meters"`
	HysteresisFactor       float64 `json:"hysteresis_factor"`
	DedupWindowSeconds     int     `json:"dedup_window_seconds"`
	DefaultStartDelayMin   int     `json:"default_start_delay_minutes"`
	DefaultStopDelayMin    int     `json:"default_stop_delay_minutes"`
	TransitionHistoryLimit int     `json:"transition_history_limit"`
}
