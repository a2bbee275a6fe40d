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

	"github.com/fabdesk/fabdesk/cmd/fabdesk/cli"
	"github.com/fabdesk/fabdesk/internal/app"
	"github.com/fabdesk/fabdesk/internal/audit"
	audithttp "github.com/fabdesk/fabdesk/internal/audit/http"
	"github.com/fabdesk/fabdesk/internal/clients"
	"github.com/fabdesk/fabdesk/internal/inventory"
	jobmetrics "github.com/fabdesk/fabdesk/internal/jobs"
	"github.com/fabdesk/fabdesk/internal/observability"
	"github.com/fabdesk/fabdesk/internal/orders"
	"github.com/fabdesk/fabdesk/internal/platform/cache"
	"github.com/fabdesk/fabdesk/internal/platform/db"
	"github.com/fabdesk/fabdesk/internal/rbac"
	"github.com/fabdesk/fabdesk/internal/shared"
	"github.com/fabdesk/fabdesk/jobs"
)

const usage = `usage: fabdesk [serve | migrate | jobs trigger <name> [business...] | jobs stats]`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	switch command {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = migrate(ctx, cfg, logger)
	case "jobs":
		err = runJobs(ctx, cfg, os.Args[2:])
	default:
		err = errors.New(usage)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(command, slog.Any("error", err))
		os.Exit(1)
	}
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, db.Options{DSN: cfg.PGDSN, MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info("schema applied")
	return nil
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	c, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New(usage)
		}
		info, err := c.Trigger(ctx, args[1], args[2:]...)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	default:
		return errors.New(usage)
	}
	return nil
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, db.Options{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	if cfg.PGAutoMigrate {
		if err := db.Migrate(ctx, dbpool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, 0)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return fmt.Errorf("jobs client: %w", err)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessions := shared.NewSessionStore(redisClient, cfg.SessionCookieName, cfg.SessionTTL)
	rbacMiddleware := rbac.Middleware{Sessions: sessions, Logger: logger}

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	inventoryService := buildInventoryService(cfg, dbpool, redisClient, jobClient, jobmetrics.NewMetrics(metrics.Registerer()), auditLogger, idempotencyStore, logger)

	clientsService := clients.NewService(clients.NewRepository(dbpool), auditLogger)
	ordersService := orders.NewService(
		orders.NewRepository(dbpool),
		clientsService,
		inventoryService,
		auditLogger,
		idempotencyStore,
		logger,
	)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		RBACMiddleware:   rbacMiddleware,
		InventoryHandler: inventory.NewHandler(logger, inventoryService, rbacMiddleware),
		ClientsHandler:   clients.NewHandler(logger, clientsService, rbacMiddleware),
		OrdersHandler:    orders.NewHandler(logger, ordersService, rbacMiddleware),
		AuditHandler:     audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), rbacMiddleware),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		Readiness: map[string]app.Pinger{
			"postgres": dbpool,
			"redis":    redisPinger{client: redisClient},
		},
	})
	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

func buildInventoryService(
	cfg *app.Config,
	pool *pgxpool.Pool,
	redisClient *redis.Client,
	jobClient *jobs.Client,
	counter inventory.AnomalyCounter,
	audit *shared.AuditLogger,
	idempotency *shared.IdempotencyStore,
	logger *slog.Logger,
) *inventory.Service {
	var reporter inventory.AnomalyReporter
	if cfg.AllowNegativeStockAlerts {
		reporter = jobClient
	}
	return inventory.NewService(
		inventory.NewRepository(pool),
		audit,
		idempotency,
		shared.NewLocker(redisClient),
		reporter,
		logger,
		inventory.ServiceConfig{ReconcileLockTTL: cfg.ReconcileLockTTL, Counter: counter},
	)
}
