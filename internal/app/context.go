package app

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"trackline/internal/blobstore"
	"trackline/internal/config"
	"trackline/internal/db"
	"trackline/internal/engine"
	"trackline/internal/migrate"
)

// Env bundles the collaborators a command needs: the migrated database, the
// workspace config and an engine wired to both.
type Env struct {
	Workspace string
	DB        *sql.DB
	Config    *config.Config
	Engine    engine.Engine
	Logger    *zap.Logger
}

// Open prepares a workspace: ensures the directory, opens and migrates the
// database, loads trackline.yml and builds the engine.
func Open(workspace string) (*Env, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}
	blobs, err := blobstore.NewFS(cfg.BlobDir(workspace))
	if err != nil {
		conn.Close()
		return nil, err
	}
	logger, err := NewLogger(cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Env{
		Workspace: workspace,
		DB:        conn,
		Config:    cfg,
		Engine:    engine.New(conn, cfg, blobs),
		Logger:    logger,
	}, nil
}

func (e *Env) Close() error {
	if e.Logger != nil {
		_ = e.Logger.Sync()
	}
	return e.DB.Close()
}

// NewLogger builds the zap logger from the workspace config.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Logger.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	var zapConfig zap.Config
	if cfg.Logger.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
