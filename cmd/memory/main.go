// Command memory runs the interaction memory service: it answers save and
// get-history on /mcp and records completed turns published on NATS.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfhttp "github.com/Strob0t/CoachForge/internal/adapter/http"
	"github.com/Strob0t/CoachForge/internal/adapter/postgres"
	"github.com/Strob0t/CoachForge/internal/bootstrap"
	"github.com/Strob0t/CoachForge/internal/domain/envelope"
	"github.com/Strob0t/CoachForge/internal/middleware"
	"github.com/Strob0t/CoachForge/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Start(ctx, args, "memory")
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config

	// --- Database ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN); err == nil {
		slog.Info("database migrated", "version", v)
	}

	mem := service.NewMemoryService(postgres.NewStore(pool))

	if cfg.NATS.URL != "" {
		cancel, err := mem.Subscribe(ctx, rt.Queue)
		if err != nil {
			return fmt.Errorf("subscribe turns: %w", err)
		}
		defer cancel()
	}

	checks := append(rt.HealthChecks(), cfhttp.HealthCheck{Name: "postgres", Check: mem.Ping})
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
	if limiter.Enabled() {
		defer limiter.StartCleanup(time.Minute, 10*time.Minute)()
	}

	return rt.Serve(ctx, cfhttp.NewRouter(cfhttp.RouterConfig{
		Service:     envelope.ServiceMemory,
		CORSOrigin:  cfg.Server.CORSOrigin,
		RateLimiter: limiter,
	}, cfhttp.Routes{
		MCP:    cfhttp.NewMemoryEndpoint(mem),
		Health: cfhttp.HealthHandler(envelope.ServiceMemory, checks...),
	}))
}
