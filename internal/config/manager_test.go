package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewManager tests the creation of a new configuration manager
func TestNewManager(t *testing.T) {
	setupTestEnv(t)
	defer cleanupTestEnv(t)

	manager, err := NewManager()

	require.NoError(t, err)
	require.NotNil(t, manager)

	// Verify default values
	assert.Equal(t, 8080, manager.GetEffectiveServerConfig().Port)
	assert.Equal(t, "0.0.0.0", manager.GetEffectiveServerConfig().Host)

	engine := manager.GetEngineConfig()
	assert.Equal(t, float64(50), engine.DefaultRadiusMeters)
	assert.Equal(t, float64(30), engine.MinRadiusMeters)
	assert.Equal(t, 1.3, engine.HysteresisFactor)
	assert.Equal(t, 10, engine.DedupWindowSeconds)
	assert.Equal(t, 0, engine.DefaultStartDelayMin)
	assert.Equal(t, 2, engine.DefaultStopDelayMin)
	assert.Equal(t, 50, engine.TransitionHistoryLimit)
}

// TestManagerReloadConfig tests configuration reloading
func TestManagerReloadConfig(t *testing.T) {
	setupTestEnv(t)
	defer cleanupTestEnv(t)

	manager := &Manager{}

	t.Setenv("PORT", "9090")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("GEOFENCE_DEFAULT_RADIUS_METERS", "120")
	t.Setenv("DEFAULT_STOP_DELAY_MINUTES", "5")

	err := manager.ReloadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, manager.GetEffectiveServerConfig().Port)
	assert.Equal(t, "127.0.0.1", manager.GetEffectiveServerConfig().Host)
	assert.Equal(t, float64(120), manager.GetEngineConfig().DefaultRadiusMeters)
	assert.Equal(t, 5, manager.GetEngineConfig().DefaultStopDelayMin)
}

// TestManagerValidation tests configuration validation
func TestManagerValidation(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid configuration",
			setupEnv: func(t *testing.T) {
				setupTestEnv(t)
			},
			expectError: false,
		},
		{
			name: "invalid port - too low",
			setupEnv: func(t *testing.T) {
				setupTestEnv(t)
				t.Setenv("PORT", "0")
			},
			expectError: true,
			errorMsg:    "port must be between",
		},
		{
			name: "invalid port - too high",
			setupEnv: func(t *testing.T) {
				setupTestEnv(t)
				t.Setenv("PORT", "70000")
			},
			expectError: true,
			errorMsg:    "port must be between",
		},
		{
			name: "missing auth key",
			setupEnv: func(t *testing.T) {
				setupTestEnv(t)
				os.Unsetenv("AUTH_KEY")
			},
			expectError: true,
			errorMsg:    "AUTH_KEY is required",
		},
		{
			name: "hysteresis factor below one",
			setupEnv: func(t *testing.T) {
				setupTestEnv(t)
				t.Setenv("GEOFENCE_HYSTERESIS_FACTOR", "0.8")
			},
			expectError: true,
			errorMsg:    "hysteresis factor cannot be less than 1.0",
		},
		{
			name: "non-positive minimum radius",
			setupEnv: func(t *testing.T) {
				setupTestEnv(t)
				t.Setenv("GEOFENCE_MIN_RADIUS_METERS", "0")
			},
			expectError: true,
			errorMsg:    "minimum geofence radius must be positive",
		},
		{
			name: "default radius below the floor",
			setupEnv: func(t *testing.T) {
				setupTestEnv(t)
				t.Setenv("GEOFENCE_DEFAULT_RADIUS_METERS", "20")
			},
			expectError: true,
			errorMsg:    "below the minimum",
		},
		{
			name: "dedup window too small",
			setupEnv: func(t *testing.T) {
				setupTestEnv(t)
				t.Setenv("EVENT_DEDUP_WINDOW_SECONDS", "0")
			},
			expectError: true,
			errorMsg:    "event dedup window cannot be less than 1 second",
		},
		{
			name: "negative default delay",
			setupEnv: func(t *testing.T) {
				setupTestEnv(t)
				t.Setenv("DEFAULT_STOP_DELAY_MINUTES", "-1")
			},
			expectError: true,
			errorMsg:    "default delays cannot be negative",
		},
		{
			name: "transition history limit too small",
			setupEnv: func(t *testing.T) {
				setupTestEnv(t)
				t.Setenv("TRANSITION_HISTORY_LIMIT", "0")
			},
			expectError: true,
			errorMsg:    "transition history limit cannot be less than 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupEnv(t)
			defer cleanupTestEnv(t)

			manager := &Manager{}
			err := manager.ReloadConfig()

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestManagerGetters tests all getter methods
func TestManagerGetters(t *testing.T) {
	setupTestEnv(t)
	defer cleanupTestEnv(t)

	t.Setenv("REDIS_DSN", "redis://localhost:6379")
	t.Setenv("DEBUG_MODE", "true")
	t.Setenv("ENABLE_CORS", "true")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080")

	manager, err := NewManager()
	require.NoError(t, err)

	authConfig := manager.GetAuthConfig()
	assert.NotEmpty(t, authConfig.Key)

	corsConfig := manager.GetCORSConfig()
	assert.True(t, corsConfig.Enabled)
	assert.Len(t, corsConfig.AllowedOrigins, 2)

	logConfig := manager.GetLogConfig()
	assert.NotEmpty(t, logConfig.Level)

	assert.Equal(t, "redis://localhost:6379", manager.GetRedisDSN())
	assert.True(t, manager.IsDebugMode())

	dbConfig := manager.GetDatabaseConfig()
	assert.NotEmpty(t, dbConfig.DSN)
}

// setupTestEnv sets up a minimal valid environment for tests
func setupTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_KEY", "test-auth-key-minimum-16-chars")
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_DSN", ":memory:")
}

// cleanupTestEnv cleans up test environment variables
func cleanupTestEnv(t *testing.T) {
	os.Unsetenv("AUTH_KEY")
	os.Unsetenv("PORT")
	os.Unsetenv("HOST")
	os.Unsetenv("DATABASE_DSN")
	os.Unsetenv("REDIS_DSN")
	os.Unsetenv("DEBUG_MODE")
	os.Unsetenv("ENABLE_CORS")
	os.Unsetenv("ALLOWED_ORIGINS")
	os.Unsetenv("GEOFENCE_DEFAULT_RADIUS_METERS")
	os.Unsetenv("GEOFENCE_MIN_RADIUS_METERS")
	os.Unsetenv("GEOFENCE_HYSTERESIS_FACTOR")
	os.Unsetenv("EVENT_DEDUP_WINDOW_SECONDS")
	os.Unsetenv("DEFAULT_START_DELAY_MINUTES")
	os.Unsetenv("DEFAULT_STOP_DELAY_MINUTES")
	os.Unsetenv("TRANSITION_HISTORY_LIMIT")
}
