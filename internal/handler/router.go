/*
Package handler provides the HTTP handlers and routing of the reference matchup backend.

This file defines the main Router, applying logging, CORS, metrics and IP-based rate
limiting before delegating requests to the API and WebSocket handlers.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"matchup/internal/pkg/auth/token"
	"matchup/internal/pkg/limiter"
	"matchup/internal/pkg/logx"
	"matchup/internal/pkg/metrics"
	"matchup/internal/pkg/resp"
)

const (
	SignupRate  = 0.05
	SignupBurst = 5
	JoinRate    = 0.5
	JoinBurst   = 10
)

// Router sets up the main HTTP routing table (chi.Router) for the backend.
func Router(deps *AppDeps) http.Handler {
	signupLimiter := limiter.NewIPRateLimiter(rate.Limit(SignupRate), SignupBurst)
	joinLimiter := limiter.NewIPRateLimiter(rate.Limit(JoinRate), JoinBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				// native clients send no Origin
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondJSON(w, r, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "matchUp backend",
		})
	})

	if deps.Registry != nil {
		r.Handle("/metrics", metrics.Handler(deps.Registry))
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/users", HandleListUsers(deps))
		api.With(signupLimiter.Middleware).Post("/users", HandleCreateUser(deps))
		api.With(token.RequireBearer(deps.Config.TokenSigningKey)).Put("/users/{userId}", HandleUpdateUser(deps))

		api.Get("/locations", HandleListLocations(deps))
	})

	r.Get("/api/user-locations/user/{userId}", HandleListUserLocations(deps))
	r.Post("/api/user-locations", HandleJoinLocation(deps))

	r.Get("/ws", HandleWebSocket(wsUpgrader, joinLimiter, deps))
	r.Get("/ws/{room}", HandleWebSocket(wsUpgrader, joinLimiter, deps))

	return r
}
