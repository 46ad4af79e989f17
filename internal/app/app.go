// Package app wires configuration into a running server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/config"
	"github.com/Skotchmaster/marketplace/internal/db"
	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/logging"
	"github.com/Skotchmaster/marketplace/internal/metrics"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/search"
	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/internal/session"
	"github.com/Skotchmaster/marketplace/internal/storage"
	httpserver "github.com/Skotchmaster/marketplace/internal/transport/http"
)

type App struct {
	Echo      *echo.Echo
	DB        *gorm.DB
	Publisher events.Publisher

	cfg    *config.Config
	log    *slog.Logger
	redis  *redis.Client
	server *http.Server
}

// Build opens every backing service named by cfg and assembles the HTTP server.
// Kafka and Elasticsearch are optional: empty settings disable them.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	gdb, err := db.Open(logging.IntoContext(ctx, log), cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a := &App{DB: gdb, cfg: cfg, log: log, Publisher: events.Noop{}}

	if err := db.Migrate(gdb); err != nil {
		a.Close()
		return nil, err
	}

	store, err := a.sessionStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	images, err := storage.NewImageStore(cfg.UploadDir)
	if err != nil {
		a.Close()
		return nil, err
	}

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		a.Publisher = events.NewKafkaPublisher(brokers)
		log.Info("kafka_enabled", "brokers", brokers)
	}

	r := repo.New(gdb)
	products := &service.ProductService{Repo: r, Images: images, Events: a.Publisher}
	if cfg.ESURL != "" {
		idx, err := search.New(ctx, search.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword, Index: cfg.ESIndex})
		if err != nil {
			a.Close()
			return nil, err
		}
		products.Index = idx
		log.Info("search_index_enabled", "url", cfg.ESURL, "index", cfg.ESIndex)
	}

	if cfg.SecretGenerated {
		log.Warn("session_secret_generated", "reason", "SESSION_SECRET is empty; sessions end when the process exits")
	}
	sessions := session.NewManager(store, []byte(cfg.SessionSecret), cfg.CookieSecure)
	m := metrics.New()

	e, err := httpserver.New(&httpserver.Deps{
		Handler: &httpserver.Handler{
			Auth:         &service.AuthService{Repo: r, Sessions: store, Events: a.Publisher},
			Products:     products,
			Sessions:     sessions,
			Metrics:      m,
			DB:           gdb,
			CookieSecure: cfg.CookieSecure,
		},
		Sessions:  sessions,
		Metrics:   m,
		Logger:    log,
		UploadDir: cfg.UploadDir,
		BodyLimit: cfg.BodyLimit(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Echo = e
	return a, nil
}

func (a *App) sessionStore(ctx context.Context) (session.Store, error) {
	if a.cfg.SessionBackend == "redis" {
		client, err := session.NewRedisClient(ctx, a.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.redis = client
		return session.NewRedisStore(client, a.cfg.SessionTTL), nil
	}
	return session.NewGormStore(a.DB, a.cfg.SessionTTL), nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context, addr string) error {
	a.server = &http.Server{
		Addr:         addr,
		Handler:      a.Echo,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http_server_started", "addr", addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Close releases the backing services. Errors are logged.
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.log.Error("kafka_close_failed", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("redis_close_failed", "error", err)
		}
	}
	if a.DB != nil {
		if err := db.Close(a.DB); err != nil {
			a.log.Error("db_close_failed", "error", err)
		}
	}
}
