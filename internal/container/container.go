// Package container builds the dig dependency-injection container.
package container

import (
	"geotrack/internal/app"
	"geotrack/internal/config"
	"geotrack/internal/db"
	"geotrack/internal/engine"
	"geotrack/internal/handler"
	"geotrack/internal/router"
	"geotrack/internal/store"

	"go.uber.org/dig"
)

// BuildContainer wires all application components.
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	providers := []any{
		config.NewManager,
		store.NewStore,
		db.NewDB,
		engine.NewEngine,
		handler.NewServer,
		router.NewRouter,
		app.NewApp,
	}

	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	return container, nil
}
