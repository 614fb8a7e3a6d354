package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"pipeband-quiz-service/internal/auth"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth           *AuthHandler
	Game           *GameHandler
	Admin          *AdminHandler
	WS             *WSHandler
	Tokens         *auth.TokenService
	AllowedOrigins []string
}

// NewRouter wires the HTTP routes and middleware.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", h.Auth.Login)
			r.Get("/callback", h.Auth.Callback)
			r.Post("/refresh", h.Auth.Refresh)
			r.Post("/logout", h.Auth.Logout)
		})

		r.Get("/leaderboard", h.Game.Leaderboard)
		r.Get("/results/message", h.Game.ResultMessage)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession(h.Tokens))
			r.Post("/game/save", h.Game.Save)
		})

		r.Get("/admin/import-playlist", h.Admin.ImportPlaylist)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireSession(h.Tokens))
		r.Get("/ws/quiz", h.WS.ServeWS)
	})

	origins := h.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return c.Handler(r)
}
