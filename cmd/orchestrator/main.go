// Command orchestrator runs the coach orchestration core: it answers
// process-user-input on /mcp, streams turn progress on /ws and exposes the
// pipeline as MCP tools on /tools/mcp.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Strob0t/CoachForge/internal/adapter/agentclient"
	cfhttp "github.com/Strob0t/CoachForge/internal/adapter/http"
	"github.com/Strob0t/CoachForge/internal/adapter/litellm"
	cfmcp "github.com/Strob0t/CoachForge/internal/adapter/mcp"
	cfotel "github.com/Strob0t/CoachForge/internal/adapter/otel"
	"github.com/Strob0t/CoachForge/internal/adapter/ws"
	"github.com/Strob0t/CoachForge/internal/bootstrap"
	"github.com/Strob0t/CoachForge/internal/config"
	"github.com/Strob0t/CoachForge/internal/domain/envelope"
	"github.com/Strob0t/CoachForge/internal/middleware"
	"github.com/Strob0t/CoachForge/internal/resilience"
	"github.com/Strob0t/CoachForge/internal/service"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Start(ctx, args, "orchestrator")
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config

	// --- Worker calls ---
	breakers := resilience.NewSet(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	caller := agentclient.New(cfg.Worker.Timeout,
		agentclient.WithBreakers(breakers),
		agentclient.WithTransport(cfotel.Transport(nil)),
	)

	router, err := newRouter(ctx, rt, caller)
	if err != nil {
		return err
	}

	registry, err := service.NewDefaultRegistry(service.NewWorkers(caller, cfg.Services))
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	registry.SetMetrics(rt.Metrics)

	// --- Services ---
	hub := ws.NewHub(cfg.Server.CORSOrigin)
	coach := service.NewCoachService(router, registry, cfg.Orchestrator)
	coach.SetQueue(rt.Queue)
	coach.SetBroadcaster(hub)
	coach.SetMetrics(rt.Metrics)

	// --- HTTP ---
	checks := append(rt.HealthChecks(), cfhttp.HealthCheck{
		Name:  "breakers",
		Check: func(context.Context) error { return openBreakers(breakers) },
	})
	routes := cfhttp.Routes{
		MCP:    cfhttp.NewOrchestratorEndpoint(coach),
		Health: cfhttp.HealthHandler(envelope.ServiceOrchestrator, checks...),
		WS:     hub.HandleWS,
	}
	if cfg.MCP.Enabled {
		tools := cfmcp.NewServer(
			cfmcp.ServerConfig{Name: "coachforge", Version: version},
			cfmcp.ServerDeps{Coach: coach, Router: router, Registry: registry},
		)
		routes.Tools = tools.Handler()
		defer func() { _ = tools.Shutdown(context.Background()) }()
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
	if limiter.Enabled() {
		defer limiter.StartCleanup(time.Minute, 10*time.Minute)()
	}

	slog.Info("orchestrator ready",
		"version", version,
		"router_mode", cfg.Router.Mode,
		"parallel_gather", cfg.Orchestrator.ParallelGather,
		"thread_vision", cfg.Orchestrator.ThreadVision,
		"mcp_tools", cfg.MCP.Enabled,
	)
	return rt.Serve(ctx, cfhttp.NewRouter(cfhttp.RouterConfig{
		Service:     envelope.ServiceOrchestrator,
		CORSOrigin:  cfg.Server.CORSOrigin,
		RateLimiter: limiter,
	}, routes))
}

// newRouter builds the routing strategy. In remote mode the manager is asked
// first and the keyword table answers when it cannot. In local mode the
// router runs in process, calling LiteLLM when a URL is configured.
func newRouter(ctx context.Context, rt *bootstrap.Runtime, caller *agentclient.Client) (service.Router, error) {
	cfg := rt.Config
	if cfg.Router.Mode == config.RouterRemote {
		fallback := service.NewRouterService(nil, cfg.Router, nil)
		fallback.SetMetrics(rt.Metrics)
		remote := service.NewRemoteRouter(caller, cfg.Services.Manager, fallback)
		remote.SetMetrics(rt.Metrics)
		return remote, nil
	}

	c, err := rt.RouteCache(ctx)
	if err != nil {
		return nil, err
	}
	var local *service.RouterService
	if cfg.LiteLLM.URL != "" {
		llm := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey)
		llm.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
		llm.SetTransport(cfotel.Transport(nil))
		local = service.NewRouterService(llm, cfg.Router, c)
	} else {
		local = service.NewRouterService(nil, cfg.Router, c)
	}
	local.SetMetrics(rt.Metrics)
	return local, nil
}

func openBreakers(s *resilience.Set) error {
	var open []string
	for name, state := range s.States() {
		if state == "open" {
			open = append(open, name)
		}
	}
	if len(open) > 0 {
		return fmt.Errorf("open: %v", open)
	}
	return nil
}
