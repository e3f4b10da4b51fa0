package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Surfinbird-star/aas2/internal/api"
	"github.com/Surfinbird-star/aas2/internal/auth"
	"github.com/Surfinbird-star/aas2/internal/cart"
	"github.com/Surfinbird-star/aas2/internal/config"
	"github.com/Surfinbird-star/aas2/internal/db"
	"github.com/Surfinbird-star/aas2/internal/document"
	"github.com/Surfinbird-star/aas2/internal/metrics"
	"github.com/Surfinbird-star/aas2/internal/objstore"
	"github.com/Surfinbird-star/aas2/internal/order"
	"github.com/Surfinbird-star/aas2/internal/store"
	"github.com/Surfinbird-star/aas2/internal/web"
)

// tokenPurgeInterval is how often expired revoked tokens are removed.
const tokenPurgeInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	_, statErr := os.Stat(cfg.Database.Path)
	firstRun := errors.Is(statErr, os.ErrNotExist)

	database, err := openDatabase(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if firstRun {
		password, err := createAdmin(ctx, database, defaultAdminEmail)
		if err != nil {
			return err
		}
		printInitResult(cfg.Database.Path, defaultAdminEmail, password)
		fmt.Println()
	}

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		// Generated on first run and kept in the database.
		if jwtSecret, err = store.GetJWTSecret(ctx, database); err != nil {
			return fmt.Errorf("loading jwt secret: %w", err)
		}
	}

	documents, err := objstore.New(ctx, cfg.Storage, cfg.Storage.DocumentsBucket)
	if err != nil {
		return fmt.Errorf("opening documents bucket: %w", err)
	}
	images, err := objstore.New(ctx, cfg.Storage, cfg.Storage.ProductsBucket)
	if err != nil {
		return fmt.Errorf("opening product images bucket: %w", err)
	}
	slog.Info("object storage ready", "driver", cfg.Storage.Driver,
		"documents", documents.Name(), "images", images.Name())

	carts, closeCarts, err := newCartProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCarts()

	logger := slog.Default()
	gate := auth.NewGate(func(ctx context.Context, userID string) (bool, error) {
		return store.GetAdminFlag(ctx, database, userID)
	}, cfg.Auth.AdminCacheSize, cfg.Auth.AdminCacheTTL, logger.With("component", "gate"))
	orders := order.NewService(database, logger.With("component", "orders"))
	docs := document.NewService(database, documents, cfg.Documents.MaxSize, logger.With("component", "documents"))

	apiRouter := api.NewRouter(api.Deps{
		DB:             database,
		JWTSecret:      jwtSecret,
		SessionTTL:     cfg.Auth.SessionTTL,
		RequestTimeout: cfg.Server.RequestTimeout,
		Gate:           gate,
		Orders:         orders,
		Documents:      docs,
		Images:         images,
	})
	webRouter, err := web.NewRouter(&web.Server{
		DB:            database,
		JWTSecret:     jwtSecret,
		SessionTTL:    cfg.Auth.SessionTTL,
		SecureCookies: cfg.Server.SecureCookies,
		Gate:          gate,
		Orders:        orders,
		Documents:     docs,
		Carts:         carts,
		Images:        images,
	}, cfg.Server.RequestTimeout)
	if err != nil {
		return fmt.Errorf("setting up web router: %w", err)
	}

	// API routes take priority, web routes handle the rest.
	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("/", webRouter)
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	go purgeRevokedTokens(purgeCtx, database)

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// openDatabase opens the SQLite file and applies pending migrations.
func openDatabase(ctx context.Context, path string) (*sql.DB, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	slog.Info("database ready", "path", path)
	return database, nil
}

// newCartProvider returns the configured cart store. The returned cleanup
// closes the Redis client when one was opened.
func newCartProvider(ctx context.Context, cfg *config.Config) (cart.Provider, func(), error) {
	if cfg.Cart.Store != config.CartRedis {
		return &cart.CookieProvider{
			Name:   "cart",
			MaxAge: cfg.Cart.TTL,
			Secure: cfg.Server.SecureCookies,
		}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cart.RedisAddr,
		Password: cfg.Cart.RedisPassword,
		DB:       cfg.Cart.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connecting to redis %s: %w", cfg.Cart.RedisAddr, err)
	}
	slog.Info("cart store ready", "store", "redis", "addr", cfg.Cart.RedisAddr)

	return &cart.RedisProvider{
		Client:     client,
		CookieName: "cart_id",
		TTL:        cfg.Cart.TTL,
		Secure:     cfg.Server.SecureCookies,
	}, func() { client.Close() }, nil
}

func purgeRevokedTokens(ctx context.Context, database *sql.DB) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()

	for {
		n, err := store.PurgeExpiredTokens(ctx, database, time.Now())
		if err != nil && ctx.Err() == nil {
			slog.Warn("purging revoked tokens", "error", err)
		} else if n > 0 {
			slog.Info("purged revoked tokens", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
