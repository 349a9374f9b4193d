package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/marketplace/pkg/marketplace/admin"
	"github.com/mikepea/marketplace/pkg/marketplace/auth"
	"github.com/mikepea/marketplace/pkg/marketplace/config"
	"github.com/mikepea/marketplace/pkg/marketplace/database"
	"github.com/mikepea/marketplace/pkg/marketplace/logging"
	"github.com/mikepea/marketplace/pkg/marketplace/media"
	"github.com/mikepea/marketplace/pkg/marketplace/models"
	"github.com/mikepea/marketplace/pkg/marketplace/products"
	"github.com/mikepea/marketplace/pkg/marketplace/revalidate"
	"github.com/mikepea/marketplace/pkg/marketplace/tags"
	"github.com/mikepea/marketplace/pkg/marketplace/tasks"
	"go.uber.org/zap"

	_ "github.com/mikepea/marketplace/api/swagger"
)

// @title Marketplace API
// @version 1.0
// @description Catalogue of AI products: public browsing, click-through tracking and admin curation.

// @contact.name Marketplace Support
// @contact.url https://github.com/mikepea/marketplace

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Session JWT. Format: "Bearer {token}". The marketplace_session cookie is accepted too.

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Connect(cfg.Database, logger); err != nil {
		return err
	}
	db := database.GetDB()

	if err := models.AutoMigrate(db); err != nil {
		return err
	}
	logger.Info("database migrations completed")

	promoted, err := admin.PromoteAdmins(ctx, db, cfg.Auth.AdminEmails)
	if err != nil {
		return err
	}
	if promoted > 0 {
		logger.Info("promoted configured admins", zap.Int64("count", promoted))
	}

	notifier, err := revalidate.New(cfg.Revalidate, logger.Named("revalidate"))
	if err != nil {
		return err
	}
	defer notifier.Close()

	dispatcher, err := tasks.New(cfg.Tasks.PoolSize, cfg.Tasks.Timeout, logger.Named("tasks"))
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	opts := []products.Option{products.WithNotifier(notifier)}
	if cfg.Media.Enabled() {
		host, err := media.NewCloudinary(cfg.Media.CloudName, cfg.Media.APIKey, cfg.Media.APISecret)
		if err != nil {
			return err
		}
		opts = append(opts, products.WithMediaHost(host))
	} else {
		logger.Warn("media host not configured, hosted thumbnails are kept on delete")
	}

	service := products.NewService(db, tags.NewResolver(db), dispatcher, logger.Named("products"), opts...)

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(routerDeps{
		cfg:      cfg,
		db:       db,
		logger:   logger,
		tokens:   auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		products: service,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting marketplace server", zap.String("addr", cfg.HTTP.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// Deferred: dispatcher drains its tasks, then the notifier closes.
	return nil
}
