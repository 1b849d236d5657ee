package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/tapranked/internal/middleware"
	"github.com/mmeshcher/tapranked/internal/ratelimit"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса tapranked.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.Metrics(h.metrics))
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/auth", func(r chi.Router) {
			r.With(h.limit("register", ratelimit.RegisterRule)).Post("/register", h.Register)
			r.With(h.limit("login", ratelimit.LoginRule)).Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Get("/session", h.Session)

			r.With(h.limit("admin_login", ratelimit.AdminLoginRule)).Post("/admin-login", h.AdminLogin)
			r.Post("/admin-logout", h.AdminLogout)
			r.Get("/admin-session", h.AdminSession)
		})

		r.Get("/businesses", h.Businesses)
		r.Get("/prizes", h.Prizes)
		r.Get("/leaderboard", h.Leaderboard)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Customer)

			r.With(h.limit("punch", ratelimit.PunchRule)).Post("/punches", h.CollectPunch)
			r.Post("/prizes/redeem", h.RedeemPrize)
			r.Get("/punch-cards", h.PunchCards)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/businesses", h.AdminBusinesses)
				r.Post("/businesses", h.AdminCreateBusiness)
				r.Post("/prizes", h.AdminCreatePrize)
			})
		})

		r.Route("/business", func(r chi.Router) {
			r.Post("/signup", h.BusinessSignup)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Admin)

				r.Get("/prizes", h.BusinessPrizes)
				r.Post("/prizes", h.CreateBusinessPrize)
				r.Patch("/prizes", h.UpdateBusinessPrize)
				r.Patch("/settings", h.UpdateSettings)
				r.Get("/analytics", h.Analytics)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}

func (h *Handler) limit(action string, rule ratelimit.Rule) func(http.Handler) http.Handler {
	if h.rateLimiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.rateLimiter.Limit(action, rule)
}
