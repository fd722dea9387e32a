// Package server initializes and runs the registry gateway server.
// It wires the database, the record service, the HTTP API with its
// websocket snapshot feed, and the periodic snapshot archiver, and
// handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/todosutiles/kitsync/internal/logging"
	"github.com/todosutiles/kitsync/internal/server/archive"
	"github.com/todosutiles/kitsync/internal/server/config"
	"github.com/todosutiles/kitsync/internal/server/httpapi"
	"github.com/todosutiles/kitsync/internal/server/records"
	"github.com/todosutiles/kitsync/internal/server/shared/db"
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	repoManager   db.RepositoryManager
	recordService *records.Service
	archiver      *archive.S3Archiver
	httpServer    *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	rm, err := db.NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	recordService := records.NewService(rm.Records(), logger)
	archiver := archive.NewS3Archiver(recordService, cfg, logger)
	httpServer := httpapi.NewServer(cfg.EndpointAddr, recordService, archiver, logger)

	return &App{
		config:        cfg,
		logger:        logger,
		repoManager:   rm,
		recordService: recordService,
		archiver:      archiver,
		httpServer:    httpServer,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.archiver.RunPeriodic(ctx, app.config.ArchiveInterval)
	}()

	wg.Wait()

	if err := app.repoManager.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
