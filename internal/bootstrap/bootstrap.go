// Package bootstrap holds the startup wiring shared by the CoachForge
// service binaries: configuration, logging, telemetry, the optional NATS
// connection, the routing cache and the HTTP server lifecycle.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	cfhttp "github.com/Strob0t/CoachForge/internal/adapter/http"
	cfnats "github.com/Strob0t/CoachForge/internal/adapter/nats"
	"github.com/Strob0t/CoachForge/internal/adapter/natskv"
	cfotel "github.com/Strob0t/CoachForge/internal/adapter/otel"
	"github.com/Strob0t/CoachForge/internal/adapter/ristretto"
	"github.com/Strob0t/CoachForge/internal/adapter/tiered"
	"github.com/Strob0t/CoachForge/internal/config"
	"github.com/Strob0t/CoachForge/internal/logger"
	"github.com/Strob0t/CoachForge/internal/port/cache"
	"github.com/Strob0t/CoachForge/internal/port/messagequeue"
)

const shutdownTimeout = 10 * time.Second

// Runtime is the shared infrastructure of one running service.
type Runtime struct {
	Service string
	Config  *config.Config
	Metrics *cfotel.Metrics
	Queue   messagequeue.Queue // messagequeue.Nop when NATS is not configured

	nats    *cfnats.Queue
	closers []func(context.Context) error
}

// Start loads configuration from args, installs the default logger and
// telemetry, and connects to NATS when a URL is configured.
func Start(ctx context.Context, args []string, service string) (*Runtime, error) {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return nil, err
	}
	cfg, path, err := config.LoadWithCLI(flags)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Logging.Service == config.Defaults().Logging.Service {
		cfg.Logging.Service = "coach-" + service
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	rt := &Runtime{Service: service, Config: cfg, Queue: messagequeue.Nop{}}
	rt.onClose(func(context.Context) error {
		logCloser.Close()
		return nil
	})

	slog.Info("config loaded",
		"path", path,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"router_mode", cfg.Router.Mode,
	)

	shutdownOTEL, err := cfotel.Init(ctx, cfg.OTEL, service)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("otel: %w", err)
	}
	rt.onClose(func(ctx context.Context) error { return shutdownOTEL(ctx) })

	if rt.Metrics, err = cfotel.NewMetrics(); err != nil {
		rt.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	if cfg.NATS.URL != "" {
		q, err := cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("nats: %w", err)
		}
		rt.nats = q
		rt.Queue = q
		rt.onClose(func(context.Context) error { return q.Drain() })
	} else {
		slog.Info("nats not configured, turn events disabled")
	}
	return rt, nil
}

// onClose registers fn to run on Close, in reverse registration order.
func (rt *Runtime) onClose(fn func(context.Context) error) {
	rt.closers = append(rt.closers, fn)
}

// Close releases everything Start and RouteCache acquired.
func (rt *Runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			slog.Warn("shutdown step failed", "error", err)
		}
	}
	rt.closers = nil
}

// RouteCache builds the routing decision cache: ristretto in process, tiered
// over a NATS KV bucket when NATS and cache.shared_bucket are configured.
func (rt *Runtime) RouteCache(ctx context.Context) (cache.Cache, error) {
	cfg := rt.Config
	local, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return nil, fmt.Errorf("route cache: %w", err)
	}
	rt.onClose(func(context.Context) error {
		local.Close()
		return nil
	})

	if rt.nats == nil || cfg.Cache.SharedBucket == "" || cfg.Router.CacheTTL <= 0 {
		return local, nil
	}
	kv, err := rt.nats.KeyValue(ctx, cfg.Cache.SharedBucket, cfg.Router.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("route cache: %w", err)
	}
	slog.Info("route cache shared", "bucket", cfg.Cache.SharedBucket, "ttl", cfg.Router.CacheTTL)
	return tiered.New(local, natskv.New(kv, rt.Service), cfg.Router.CacheTTL), nil
}

// HealthChecks reports the NATS connection in /health. It is empty when
// NATS is not configured.
func (rt *Runtime) HealthChecks() []cfhttp.HealthCheck {
	if rt.nats == nil {
		return nil
	}
	return []cfhttp.HealthCheck{{
		Name: "nats",
		Check: func(context.Context) error {
			if !rt.Queue.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		},
	}}
}

// Serve runs handler on the configured port until ctx is cancelled, then
// shuts the server down gracefully.
func (rt *Runtime) Serve(ctx context.Context, handler http.Handler) error {
	addr := ":" + rt.Config.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Turns fan out to several workers, each bounded by worker.timeout.
		WriteTimeout: 4*rt.Config.Worker.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "service", rt.Service, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server", "service", rt.Service)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
