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

	"github.com/alecgard/orgbook/internal/api"
	"github.com/alecgard/orgbook/internal/auth"
	"github.com/alecgard/orgbook/internal/config"
	"github.com/alecgard/orgbook/internal/metrics"
	"github.com/alecgard/orgbook/internal/organisation"
	"github.com/alecgard/orgbook/internal/ratelimit"
	"github.com/alecgard/orgbook/internal/telemetry"
	"github.com/alecgard/orgbook/internal/user"
	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Orgbook API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return err
	}

	pool, err := connectDB(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("connected to database")

	m := metrics.New()
	m.RegisterDBPoolCollector(func() metrics.PoolStats {
		s := pool.Stat()
		return metrics.PoolStats{
			Total:        s.TotalConns(),
			Idle:         s.IdleConns(),
			Acquired:     s.AcquiredConns(),
			Max:          s.MaxConns(),
			AcquireCount: s.AcquireCount(),
			EmptyAcquire: s.EmptyAcquireCount(),
			WaitSeconds:  s.AcquireDuration().Seconds(),
		}
	})

	tokens := auth.NewTokenService([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, cfg.Auth.Issuer)

	userStore := user.NewStore(pool)
	orgStore := organisation.NewStore(pool)
	userService := user.NewService(userStore, tokens)
	orgService := organisation.NewService(orgStore, orgStore, userStore)

	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	router := api.NewRouter(api.RouterDeps{
		Users:          userService,
		UserReader:     userStore,
		Orgs:           orgService,
		Tokens:         tokens,
		Limiter:        limiter,
		Metrics:        m,
		DB:             pool,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      otelhttp.NewHandler(router, cfg.Telemetry.ServiceName),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err = srv.Shutdown(shutdownCtx)
	if terr := shutdownTracing(shutdownCtx); terr != nil {
		slog.Warn("tracer shutdown failed", "error", terr)
	}
	return err
}

// newLimiter returns the Redis-backed limiter when Redis is configured and the
// in-process limiter otherwise.
func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Decider, func(), error) {
	if cfg.Redis.Addr != "" {
		rl, err := ratelimit.NewRedisLimiter(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cfg.RateLimit.Attempts, cfg.RateLimit.Window)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using redis rate limiter", "addr", cfg.Redis.Addr)
		return rl, func() { _ = rl.Close() }, nil
	}

	l := ratelimit.New(cfg.RateLimit.Attempts, cfg.RateLimit.Window)
	go l.RunSweeper(ctx)
	return l, func() {}, nil
}

// connectMaxElapsed bounds how long startup waits for the database.
const connectMaxElapsed = 30 * time.Second

// connectDB opens a pool and retries the first ping with exponential backoff.
func connectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(connectMaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("database not ready, retrying", "error", err, "retry_in", next)
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}
