// Package httpapi is a demo HTTP/WS layer (E6) exercising the navigation
// engine for manual and integration testing. It is a collaborator per §1/§6
// ("library, not a binary") — never imported by internal/nav or
// internal/config.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crowdnav/internal/nav/agent"
	"crowdnav/internal/nav/engine"
)

// EngineInterface is the subset of *engine.Engine the API layer calls,
// narrow enough to fake in router tests without running a real tick loop.
type EngineInterface interface {
	SetTarget(x, z float64)
	AddObstacle(x, z, radius float64) int
	RemoveObstacle(id int)
	Spawn(x, y, z float64, tmpl agent.Template) (int, error)
	Despawn(index int)
	ActiveCount() int
	PoolSize() int
	Snapshot() (agents []engine.AgentSnapshot, field engine.FieldSnapshot)
}

// RouterConfig carries the dependencies NewRouter needs, mirroring the
// teacher's dependency-injected RouterConfig.
type RouterConfig struct {
	Engine EngineInterface

	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig
	CORSOrigins     []string
	DisableLogging  bool
}

type routerHandlers struct {
	engine EngineInterface
}

// NewRouter builds the HTTP mux. No listener is opened, so it is safe to
// drive with httptest.NewServer. When cfg.RateLimiter is nil it constructs
// an IPRateLimiter, which starts that limiter's cleanup goroutine.
func NewRouter(cfg RouterConfig, hub *Hub) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rlCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rlCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rlCfg)
	}
	r.Use(rateLimiter.Middleware)

	origins := cfg.CORSOrigins
	if origins == nil {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{engine: cfg.Engine}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleGetState)
		r.Post("/target", h.handleSetTarget)
		r.Post("/obstacle", h.handleAddObstacle)
		r.Delete("/obstacle/{id}", h.handleRemoveObstacle)
		r.Post("/spawn", h.handleSpawn)
		r.Delete("/agent/{id}", h.handleDespawn)
	})

	if hub != nil {
		r.Get("/ws", hub.HandleWebSocket)
	}

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
