package handler

import (
	"testing"

	"geotrack/internal/config"
	"geotrack/internal/engine"
	"geotrack/internal/models"
	"geotrack/internal/store"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing (pure Go, no CGO)
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Site{},
		&models.WorkRecord{},
		&models.TransitionLog{},
	)
	require.NoError(t, err)

	return db
}

// setupTestServer creates a test server with minimal dependencies
func setupTestServer(t *testing.T) *Server {
	t.Helper()

	db := setupTestDB(t)
	mockConfig := &config.MockConfig{
		AuthKeyValue: "test-auth-key-12345678",
	}
	eng := engine.NewEngine(mockConfig, db, store.NewMemoryStore())

	return NewServer(db, eng, mockConfig)
}
