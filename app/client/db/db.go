package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"portfolio/app/config"

	"github.com/pressly/goose/v3"
	"github.com/samber/do"
	_ "github.com/tursodatabase/go-libsql"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ do.Shutdownable = (*Client)(nil)

type Client struct {
	*sql.DB
}

func New(di *do.Injector) (*Client, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	return Open(ctx, cfg.DB.Path)
}

// Open connects to an embedded libsql database file and applies pending migrations.
func Open(ctx context.Context, path string) (*Client, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("could not create database directory: %w", err)
	}

	sqlDB, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql connection: %w", err)
	}

	if err = sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if err = migrate(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &Client{DB: sqlDB}, nil
}

func migrate(ctx context.Context, sqlDB *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("fs.Sub: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("goose.NewProvider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, res := range results {
		slog.Info("Applied migration",
			"version", res.Source.Version,
			"duration", res.Duration,
		)
	}

	return nil
}

func (c *Client) Shutdown() error {
	return c.DB.Close()
}
