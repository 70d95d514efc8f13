package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"portfolio/app/client/db"
	"portfolio/app/client/inference"
	"portfolio/app/config"
	"portfolio/app/mcpserver"
	"portfolio/app/server"
	"portfolio/app/service/auth"
	"portfolio/app/service/community"
	"portfolio/app/service/events"
	"portfolio/app/service/shell"
	"portfolio/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf(".env load failed: %v", err)
	}

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, db.New)
	do.Provide(di, inference.New)
	do.Provide(di, events.New)
	do.Provide(di, auth.New)
	do.Provide(di, community.New)
	do.Provide(di, shell.New)
	do.Provide(di, server.New)
	do.Provide(di, mcpserver.New)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	group, groupCtx := errgroup.WithContext(appCtx)

	group.Go(func() error {
		do.MustInvoke[*events.Service](di).Run(groupCtx)
		return nil
	})

	group.Go(func() error {
		return do.MustInvoke[*server.Server](di).Run(groupCtx)
	})

	if cfg.MCP.Enabled {
		group.Go(func() error {
			return do.MustInvoke[*mcpserver.Server](di).Run(groupCtx)
		})
	}

	slog.Info("Service started", "telegram", true)

	if err = group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Service stopped", "error", err)
	}
}
