package api

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/middleware"
)

// RouterConfig carries the optional pieces of the middleware chain. Nil or
// zero members are left out.
type RouterConfig struct {
	Metrics        *metrics.Metrics
	Health         *health.Checker
	AnalyzeLimiter *middleware.Limiter
	AllowOrigins   []string
	RequestTimeout time.Duration
}

// NewRouter builds the service handler.
//
//	POST   /api/v1/sessions
//	DELETE /api/v1/sessions/{id}
//	POST   /api/v1/sessions/{id}/analyze
//	GET    /api/v1/sessions/{id}/pairs
//	GET    /api/v1/sessions/{id}/pairs/{idA}/{idB}
//	POST   /api/v1/sessions/{id}/pairs/{idA}/{idB}/toggle
//	PUT    /api/v1/sessions/{id}/pairs/{idA}/{idB}/overrides
//	DELETE /api/v1/sessions/{id}/pairs/{idA}/{idB}/overrides
//	GET    /api/v1/sessions/{id}/pairs/{idA}/{idB}/export
//	GET    /api/v1/sessions/{id}/overrides
//	DELETE /api/v1/sessions/{id}/overrides
//	GET    /api/v1/snapshots
//	GET    /health/live, /health/ready
//
// Middleware, outermost first: RequestID, CORS, Metrics, Timeout.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Health != nil {
		mux.HandleFunc("GET /health/live", cfg.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", cfg.Health.ReadyHandler())
	}

	var analyze http.Handler = http.HandlerFunc(h.Analyze)
	if cfg.AnalyzeLimiter != nil {
		analyze = middleware.RateLimit(cfg.AnalyzeLimiter)(analyze)
	}

	mux.HandleFunc("POST /api/v1/sessions", h.CreateSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.DeleteSession)
	mux.Handle("POST /api/v1/sessions/{id}/analyze", analyze)
	mux.HandleFunc("GET /api/v1/sessions/{id}/pairs", h.ListPairs)
	mux.HandleFunc("GET /api/v1/sessions/{id}/pairs/{idA}/{idB}", h.GetPair)
	mux.HandleFunc("POST /api/v1/sessions/{id}/pairs/{idA}/{idB}/toggle", h.Toggle)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/pairs/{idA}/{idB}/overrides", h.SetOverride)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}/pairs/{idA}/{idB}/overrides", h.ResetOverride)
	mux.HandleFunc("GET /api/v1/sessions/{id}/pairs/{idA}/{idB}/export", h.Export)
	mux.HandleFunc("GET /api/v1/sessions/{id}/overrides", h.ListOverrides)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}/overrides", h.ClearOverrides)
	mux.HandleFunc("GET /api/v1/snapshots", h.ListSnapshots)

	var chain []func(http.Handler) http.Handler
	chain = append(chain, middleware.RequestID)
	if len(cfg.AllowOrigins) > 0 {
		chain = append(chain, middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowOrigins)))
	}
	if cfg.Metrics != nil {
		chain = append(chain, middleware.Metrics(cfg.Metrics))
	}
	if cfg.RequestTimeout > 0 {
		chain = append(chain, middleware.Timeout(cfg.RequestTimeout))
	}
	return middleware.Chain(mux, chain...)
}
