package backendhandlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	backendjwt "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/jwt"
)

// RouteConfig tunes the middleware around the API.
type RouteConfig struct {
	AllowedOrigins []string
	// RequestsPerSecond and Burst bound each client address. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// Tokens guards the write endpoints when set.
	Tokens  backendjwt.Provider
	Metrics http.Handler
}

// Mount registers the API on r.
func Mount(r chi.Router, h *BackendHandlers, cfg RouteConfig) {
	api := chi.NewRouter()
	api.Use(CORSMiddleware(cfg.AllowedOrigins))
	if cfg.RequestsPerSecond > 0 {
		api.Use(RateLimitMiddleware(NewIPRateLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))))
	}

	api.Get("/user/{wallet}", h.HandleGetUser)
	api.Post("/auth/token", h.HandleIssueToken)
	api.Get("/trace/{digest}", h.HandleGetTrace)
	api.Route("/leaderboard/{roomId}", func(r chi.Router) {
		r.Get("/", h.HandleLeaderboard)
		r.Get("/export.xlsx", h.HandleExportLeaderboard)
		r.Get("/chart.png", h.HandleLeaderboardChart)
	})

	api.Group(func(r chi.Router) {
		r.Use(RequireToken(cfg.Tokens))
		r.Post("/leaderboard/add", h.HandleAddLeaderboardEntry)
		r.Post("/stake", h.HandleSetStake)
		r.Post("/trace", h.HandleSubmitTrace)
	})

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	r.Mount("/", api)
}
