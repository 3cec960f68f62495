package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"recruitline/internal/config"
	"recruitline/internal/db"
	"recruitline/internal/engine"
	"recruitline/internal/migrate"
)

// App bundles the opened store and the engine built on it.
type App struct {
	Workspace string
	Config    *config.Config
	DB        *sqlx.DB
	Engine    engine.Engine
	Log       logrus.FieldLogger
}

// Open connects the configured database, applies migrations and builds the
// engine. The memory driver starts from the bundled mock data.
func Open(ctx context.Context, workspace string, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	conn, err := db.Open(db.FromAppConfig(cfg, workspace))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a := &App{
		Workspace: workspace,
		Config:    cfg,
		DB:        conn,
		Engine:    engine.New(conn, cfg, log),
		Log:       log,
	}
	if cfg.Database.Driver == config.DriverMemory || cfg.Database.Driver == "" {
		if _, err := Seed(ctx, a.Engine); err != nil {
			conn.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}
	return a, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
