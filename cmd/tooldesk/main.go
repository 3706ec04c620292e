package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tooldesk/tooldesk/internal/app"
	"github.com/tooldesk/tooldesk/internal/auth"
	"github.com/tooldesk/tooldesk/internal/companies"
	"github.com/tooldesk/tooldesk/internal/observability"
	"github.com/tooldesk/tooldesk/internal/platform/cache"
	"github.com/tooldesk/tooldesk/internal/platform/db"
	"github.com/tooldesk/tooldesk/internal/platform/memstore"
	"github.com/tooldesk/tooldesk/internal/shared"
	"github.com/tooldesk/tooldesk/internal/tools"
	"github.com/tooldesk/tooldesk/internal/users"
	"github.com/tooldesk/tooldesk/jobs"
)

// repositories bundles the datastore ports chosen by STORAGE_DRIVER.
type repositories struct {
	users     users.Repository
	tools     tools.Repository
	companies companies.Repository
	audit     shared.AuditRecorder
	close     func()
}

func openPostgres(ctx context.Context, cfg *app.Config, logger *slog.Logger) (repositories, error) {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return repositories{}, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return repositories{}, err
	}
	repos := repositories{
		users:     users.NewRepository(pool),
		tools:     tools.NewRepository(pool),
		companies: companies.NewRepository(pool),
	}
	repos.audit, repos.close = auditRecorder(cfg, pool, logger)
	return repos, nil
}

// auditRecorder selects the asynq client or the inline Postgres writer.
func auditRecorder(cfg *app.Config, pool *pgxpool.Pool, logger *slog.Logger) (shared.AuditRecorder, func()) {
	if !cfg.AuditAsync {
		return shared.NewAuditLogger(pool), pool.Close
	}
	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("asynq client unavailable, writing audit inline", slog.Any("error", err))
		return shared.NewAuditLogger(pool), pool.Close
	}
	return client, func() {
		if err := client.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
		pool.Close()
	}
}

func openMemory(logger *slog.Logger) repositories {
	store := memstore.New()
	logger.Warn("using in-memory storage; data is lost on restart")
	return repositories{
		users:     store.Users(),
		tools:     store.Tools(),
		companies: store.Companies(),
		audit:     shared.NewLogRecorder(logger),
		close:     func() {},
	}
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// run owns every deferred close; main exits only after it returns.
func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	tokenIssuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return fmt.Errorf("init token issuer: %w", err)
	}

	var repos repositories
	if cfg.UsesMemory() {
		repos = openMemory(logger)
	} else {
		repos, err = openPostgres(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
	}
	defer repos.close()

	metrics := observability.NewMetrics()

	var redisClient *redis.Client
	if cfg.CatalogCacheTTL > 0 {
		redisClient, err = cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, catalog reads fall back to the datastore", slog.Any("error", err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}
	catalogCache := tools.NewCatalogCache(redisClient, cfg.CatalogCacheTTL).WithObserver(metrics.CacheLookup)

	usersService := users.NewService(users.ServiceConfig{
		Repository: repos.users,
		Hasher:     auth.NewBcryptHasher(cfg.BcryptCost),
		Tokens:     tokenIssuer,
		Audit:      repos.audit,
		Logger:     logger,
	})
	toolsService := tools.NewService(tools.ServiceConfig{
		Repository: repos.tools,
		Cache:      catalogCache,
		Audit:      repos.audit,
		Logger:     logger,
	})
	companiesService := companies.NewService(repos.companies, repos.audit, logger)

	var inspector *asynq.Inspector
	if !cfg.UsesMemory() {
		inspector = asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Authenticator:    auth.NewMiddleware(tokenIssuer, logger),
		UsersHandler:     users.NewHandler(logger, usersService),
		ToolsHandler:     tools.NewHandler(logger, toolsService),
		CompaniesHandler: companies.NewHandler(logger, companiesService),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		AccessLog:        true,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("storage", cfg.StorageDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
