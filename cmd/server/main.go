// Command server runs the marketplace sync service: webhook intake, the
// reporting API and the background sync workers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/bootstrap"
	"github.com/meschain/marketsync/internal/infrastructure/config"
	"github.com/meschain/marketsync/internal/infrastructure/logger"

	_ "github.com/meschain/marketsync/docs"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Marketsync API
//	@version		1.0
//	@description	Multi-marketplace product, stock, price and order synchronization
//	@termsOfService	http://swagger.io/terms/

//	@contact.name	API Support
//	@contact.url	https://github.com/meschain/marketsync
//	@contact.email	support@meschain.example.com

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "marketsync:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
		Service:    cfg.App.Name,
		Env:        cfg.App.Env,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting marketplace sync service",
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
		zap.Any("marketplaces", cfg.EnabledMarketplaces()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log, version)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	// from here on entries also reach the collector
	log = app.Logger

	if err := app.Start(ctx); err != nil {
		app.Shutdown(context.Background())
		return fmt.Errorf("start workers: %w", err)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        routes(app),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	var failure error
	select {
	case <-ctx.Done():
		log.Info("Signal received, draining")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			failure = fmt.Errorf("http server: %w", err)
			log.Error("HTTP server stopped", zap.Error(err))
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout(cfg.Sync.ShutdownTimeout))
	defer cancel()
	// webhooks stop first so nothing new lands in the queues being drained
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Warn("HTTP server did not close cleanly", zap.Error(err))
	}
	app.Shutdown(drainCtx)

	if drainCtx.Err() != nil {
		log.Warn("Drain deadline exceeded, in-flight jobs were cancelled")
	} else {
		log.Info("Stopped")
	}
	return failure
}

func drainTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}
