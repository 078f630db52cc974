package cli

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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"risk-console/internal/api"
	"risk-console/internal/backend"
	"risk-console/internal/console"
	"risk-console/internal/events"
	"risk-console/internal/monitor"
	"risk-console/internal/query"
	"risk-console/pkg/cache"
	"risk-console/pkg/config"
	"risk-console/pkg/db"
	"risk-console/pkg/i18n"
)

func newServeCommand(e *env) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				e.cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, e.cfg, e.logger, e.version)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default $PORT)")
	return cmd
}

// queryStore picks Redis when configured and reachable, memory otherwise.
func queryStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (query.Store, func()) {
	if cfg.RedisAddr == "" {
		return query.NewMemoryStore(cache.NewShardedCache()), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn(i18n.Getf("RedisUnavailable", cfg.RedisAddr, err))
		_ = client.Close()
		return query.NewMemoryStore(cache.NewShardedCache()), func() {}
	}
	logger.Info(i18n.Getf("RedisConnected", cfg.RedisAddr))
	return query.NewRedisStore(client, query.DefaultRedisNamespace), func() { _ = client.Close() }
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) error {
	gin.SetMode(gin.ReleaseMode)
	logger.Info(i18n.M().Starting)
	logger.Info(i18n.Getf("ConfigLoaded", cfg.Port))
	logger.Info(i18n.Getf("UsingDBPath", cfg.DBPath))

	database, err := db.New(cfg.DBPath)
	if err != nil {
		return errors.New(i18n.Getf("DBInitFailed", err))
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		return errors.New(i18n.Getf("DBMigrationsFailed", err))
	}
	queries := database.Queries()
	if cfg.AuthEnabled() {
		if err := api.SeedOperator(ctx, queries, cfg.ConsoleUser, cfg.ConsolePassword); err != nil {
			return fmt.Errorf("seed operator: %w", err)
		}
		logger.Info(i18n.Getf("OperatorSeeded", cfg.ConsoleUser))
	}

	bus := events.NewBus()
	metrics := monitor.NewConsoleMetrics()
	alerts := monitor.NewMemorySink(100)

	store, closeStore := queryStore(ctx, cfg, logger)
	defer closeStore()
	qc := query.New(store,
		query.WithTTL(cfg.CacheTTL),
		query.WithFetchTimeout(cfg.BackendTimeout),
		query.WithBus(bus),
		query.WithRecorder(metrics),
		query.WithLogger(logger),
	)
	go qc.Run(ctx, time.Minute)

	(&monitor.Monitor{
		Bus:     bus,
		Sink:    monitor.MultiSink{monitor.LogSink{Logger: logger}, alerts},
		Metrics: metrics,
		Logger:  logger,
	}).Start(ctx)

	client := backend.New(cfg.BackendURL, cfg.BackendAPIKey,
		backend.WithTimeout(cfg.BackendTimeout),
		backend.WithLogger(logger, cfg.BackendLogBody),
		backend.WithRecorder(metrics),
	)
	svc := console.New(console.Config{
		Backend: client,
		Cache:   qc,
		Audit:   queries,
		Bus:     bus,
		Logger:  logger,
	})

	opts := api.OptionsFromConfig(cfg)
	opts.Version = version
	server := api.NewServer(api.Deps{
		Console:   svc,
		Bus:       bus,
		Metrics:   metrics,
		Operators: queries,
		Alerts:    alerts,
		Logger:    logger,
	}, opts)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info(i18n.Getf("ServerListening", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.New(i18n.Getf("APIServerError", err))
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(i18n.M().ShuttingDown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
