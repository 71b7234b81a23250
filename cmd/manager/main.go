// Command manager runs the routing service: it answers route-services on
// /mcp with the workers a user turn needs.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfhttp "github.com/Strob0t/CoachForge/internal/adapter/http"
	"github.com/Strob0t/CoachForge/internal/adapter/litellm"
	cfotel "github.com/Strob0t/CoachForge/internal/adapter/otel"
	"github.com/Strob0t/CoachForge/internal/bootstrap"
	"github.com/Strob0t/CoachForge/internal/domain/envelope"
	"github.com/Strob0t/CoachForge/internal/middleware"
	"github.com/Strob0t/CoachForge/internal/resilience"
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

	rt, err := bootstrap.Start(ctx, args, "manager")
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config

	routeCache, err := rt.RouteCache(ctx)
	if err != nil {
		return err
	}

	checks := rt.HealthChecks()
	var router *service.RouterService
	if cfg.LiteLLM.URL != "" {
		llm := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey)
		llm.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
		llm.SetTransport(cfotel.Transport(nil))
		router = service.NewRouterService(llm, cfg.Router, routeCache)
		checks = append(checks, cfhttp.HealthCheck{
			Name: "litellm",
			Check: func(ctx context.Context) error {
				ok, err := llm.Health(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("unhealthy")
				}
				return nil
			},
		})
	} else {
		slog.Warn("litellm.url not set, routing by keywords only")
		router = service.NewRouterService(nil, cfg.Router, routeCache)
	}
	router.SetMetrics(rt.Metrics)

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
	if limiter.Enabled() {
		defer limiter.StartCleanup(time.Minute, 10*time.Minute)()
	}

	slog.Info("manager ready", "model", cfg.Router.Model, "cache_ttl", cfg.Router.CacheTTL)
	return rt.Serve(ctx, cfhttp.NewRouter(cfhttp.RouterConfig{
		Service:     envelope.ServiceManager,
		CORSOrigin:  cfg.Server.CORSOrigin,
		RateLimiter: limiter,
	}, cfhttp.Routes{
		MCP:    cfhttp.NewManagerEndpoint(router),
		Health: cfhttp.HealthHandler(envelope.ServiceManager, checks...),
	}))
}
