package httpserver

import (
	"log/slog"
	"net/http"
)

// AdminPrefix is the path prefix guarded by the admin token.
const AdminPrefix = "/v1/admin/"

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler serves the API (see package handler).
	Handler http.Handler

	// Metrics serves /metrics; nil leaves the route unregistered.
	Metrics http.Handler

	// Observer receives per-request measurements; may be nil.
	Observer RequestObserver

	Logger *slog.Logger

	// RateLimit is the per-IP request rate (requests/second); 0 disables it.
	RateLimit float64
	RateBurst int

	// AdminToken guards /v1/admin/; empty leaves it open.
	AdminToken string

	// CORSAllowedOrigins enables CORS when non-empty.
	CORSAllowedOrigins []string
}

// NewRouter wraps the API handler in the middleware chain and mounts the
// metrics endpoint next to it.
//
// Order: Recover -> RequestID -> CORS -> RateLimit -> AdminAuth -> AccessLog -> Handler
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	chain := []Middleware{
		Recover(cfg.Logger),
		RequestID(),
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		chain = append(chain, CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.RateLimit > 0 {
		chain = append(chain, RateLimit(NewRateLimiter(cfg.RateLimit, cfg.RateBurst)))
	}
	chain = append(chain,
		AdminAuth(AdminPrefix, cfg.AdminToken),
		AccessLog(cfg.Logger, cfg.Observer),
	)

	mux := http.NewServeMux()
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics, Recover(cfg.Logger)))
	}
	mux.Handle("/", Chain(cfg.Handler, chain...))
	return mux
}
