// Package server wires the catalog: storage backends, the image pipeline,
// services and the HTTP server, and runs them until a shutdown signal.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/autolot/internal/logging"
	"github.com/dmitrijs2005/autolot/internal/server/assets"
	"github.com/dmitrijs2005/autolot/internal/server/config"
	"github.com/dmitrijs2005/autolot/internal/server/httpserver"
)

type App struct {
	config *config.Config
	logger logging.Logger
	stack  *Stack
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	stack, err := NewStack(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	if err := stack.Repos.RunMigrations(ctx); err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	return &App{config: c, logger: logger, stack: stack}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) newHTTPServer() *httpserver.HTTPServer {
	opts := httpserver.Options{
		RequestTimeout:     app.config.RequestTimeout,
		MaxFiles:           app.config.MaxFilesPerBatch,
		MaxFileBytes:       app.config.MaxFileBytes,
		LoginRatePerMinute: app.config.LoginRatePerMinute,
		LoginBurst:         app.config.LoginBurst,
	}
	if fs, ok := app.stack.Store.(*assets.FileStore); ok {
		opts.UploadsFs = fs.Fs()
		opts.UploadsPrefix = fs.PublicPrefix()
	}
	return httpserver.NewHTTPServer(app.config.HTTPAddr, app.logger, app.stack.Vehicles, app.stack.Admin, opts)
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.newHTTPServer().Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a signal arrives, then releases the
// storage handles.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "catalog", app.config.CatalogBackend,
		"assets", app.config.AssetBackend, "engine", app.config.ImageEngine)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.stack.Close(); err != nil {
		app.logger.Error(ctx, "close storage", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
