package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	cfotel "github.com/Strob0t/CoachForge/internal/adapter/otel"
	"github.com/Strob0t/CoachForge/internal/middleware"
)

// Routes are the handlers a service exposes. Nil optional handlers are not mounted.
type Routes struct {
	MCP    http.Handler     // POST /mcp
	Health http.HandlerFunc // GET /health
	WS     http.HandlerFunc // GET /ws, optional
	Tools  http.Handler     // /tools/mcp, optional
}

// RouterConfig configures the middleware stack.
type RouterConfig struct {
	Service     string
	CORSOrigin  string
	RateLimiter *middleware.RateLimiter // applied to /mcp only; nil disables
}

// NewRouter builds the chi router shared by every CoachForge service.
func NewRouter(cfg RouterConfig, rt Routes) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Logger)
	r.Use(chimw.Recoverer)
	r.Use(CORS(cfg.CORSOrigin))
	r.Use(cfotel.HTTPMiddleware(cfg.Service))
	MountRoutes(r, cfg, rt)
	return r
}

// MountRoutes registers rt on r.
func MountRoutes(r chi.Router, cfg RouterConfig, rt Routes) {
	r.Group(func(r chi.Router) {
		r.Use(SecurityHeaders)
		if rt.Health != nil {
			r.Get("/health", rt.Health)
		}
		if rt.MCP != nil {
			mcp := rt.MCP
			if cfg.RateLimiter != nil {
				mcp = cfg.RateLimiter.Handler(mcp)
			}
			r.Method(http.MethodPost, "/mcp", mcp)
		}
	})

	if rt.WS != nil {
		r.Get("/ws", rt.WS)
	}
	if rt.Tools != nil {
		r.Handle("/tools/mcp", rt.Tools)
	}
}
