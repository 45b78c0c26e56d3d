package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Shoaib-2/websiteForYourPartner/pkg/db"
	"github.com/Shoaib-2/websiteForYourPartner/pkg/logging"
	"github.com/Shoaib-2/websiteForYourPartner/pkg/progresstoken"
	"github.com/Shoaib-2/websiteForYourPartner/pkg/ratelimit"
	"github.com/Shoaib-2/websiteForYourPartner/services/progress/internal/api"
	"github.com/Shoaib-2/websiteForYourPartner/services/progress/internal/config"
	"github.com/Shoaib-2/websiteForYourPartner/services/progress/internal/gate"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("progress service stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	limiter, closeLimiter, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	handler := newHandler(cfg, limiter, logger)
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
	}
	logger.Info("progress service listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("rate_backend", cfg.RateBackend),
		zap.Bool("secure_cookies", cfg.SecureCookies()),
	)
	return serve(ctx, ln, handler, logger)
}

func newHandler(cfg config.Config, limiter ratelimit.Limiter, logger *zap.Logger) http.Handler {
	secret := progresstoken.EnvSecret
	if cfg.CookieSecret != "" {
		secret = progresstoken.StaticSecret(cfg.CookieSecret)
	}
	if cfg.CookieSecret == "" && os.Getenv(progresstoken.SecretEnv) == "" {
		logger.Warn("PROGRESS_COOKIE_SECRET not set, using development secret")
	}
	svc := gate.New(progresstoken.New(secret), limiter, gate.Config{
		RateLimit:  cfg.RateLimit,
		RateWindow: cfg.RateWindow(),
	}, logger)
	return api.New(svc, api.Options{
		SecureCookies: cfg.SecureCookies(),
		Logger:        logger,
	}).Router()
}

// newLimiter builds the configured backend. The returned func releases it.
func newLimiter(ctx context.Context, cfg config.Config, logger *zap.Logger) (ratelimit.Limiter, func(), error) {
	switch cfg.RateBackend {
	case config.BackendRedis:
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return ratelimit.NewRedis(client, ""), func() { _ = client.Close() }, nil
	case config.BackendPostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg := ratelimit.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil
	default:
		mem := ratelimit.NewMemory()
		sweepCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			sweep(sweepCtx, mem, cfg.RateWindow(), logger)
		}()
		return mem, func() { cancel(); <-done }, nil
	}
}

// sweep drops expired buckets once per window until ctx ends.
func sweep(ctx context.Context, mem *ratelimit.Memory, every time.Duration, logger *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := mem.Sweep(now); n > 0 {
				logger.Debug("rate limit buckets swept", zap.Int("removed", n), zap.Int("remaining", mem.Len()))
			}
		}
	}
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
