package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vibematch/internal/config"
	"github.com/kailas-cloud/vibematch/internal/db"
	"github.com/kailas-cloud/vibematch/internal/db/memory"
	dbRedis "github.com/kailas-cloud/vibematch/internal/db/redis"
	logpkg "github.com/kailas-cloud/vibematch/internal/logger"
	"github.com/kailas-cloud/vibematch/internal/metrics"
	"github.com/kailas-cloud/vibematch/internal/repository/viewstate"
	"github.com/kailas-cloud/vibematch/internal/transport/backend"
	chiTransport "github.com/kailas-cloud/vibematch/internal/transport/chi"
	healthuc "github.com/kailas-cloud/vibematch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/vibematch/internal/usecase/search"
	"github.com/kailas-cloud/vibematch/internal/version"
)

const janitorInterval = time.Minute

func newServeCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Vibe Matcher web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), env)
		},
	}
	cmd.Flags().StringVar(&env, "env", config.GetEnv(), "config environment (local, docker, prod)")
	return cmd
}

func runServe(parent context.Context, env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting vibematch server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend_url", cfg.Backend.BaseURL),
		zap.String("sessions_driver", cfg.Sessions.Driver),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openSessionStore(ctx, cfg.Sessions, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics.RegisterSearchMetrics()
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	client, err := backend.NewClient(&backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout(),
		RateLimit: cfg.Backend.RateLimitRPS,
		Burst:     cfg.Backend.RateLimitBurst,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create backend client: %w", err)
	}

	// Background searches outlive their request but not the process.
	searchCtx, cancelSearches := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSearches()

	repo := viewstate.New(store, cfg.Sessions.TTL()).WithKeyPrefix(cfg.Sessions.KeyPrefix)
	views := searchuc.New(repo, client, logger).
		WithTimeout(cfg.Backend.Timeout()).
		WithBaseContext(searchCtx)
	health := healthuc.New(repo, client)

	server := chiTransport.NewServer(views, health, logger)
	handler := otelhttp.NewHandler(chiTransport.NewRouter(server, logger), "vibematch")

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	cancelSearches()
	views.Wait()

	logger.Info("Server stopped gracefully")
	return nil
}

// openSessionStore creates the view session store for the configured driver.
func openSessionStore(ctx context.Context, cfg config.SessionsConfig, logger *zap.Logger) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		s := memory.NewStore()
		go s.RunJanitor(ctx, janitorInterval)
		logger.Info("Using in-memory session store")
		return s, nil
	case config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		if err := s.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
			s.Close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to redis session store", zap.Strings("addrs", cfg.Addrs))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown sessions driver %q", cfg.Driver)
	}
}
