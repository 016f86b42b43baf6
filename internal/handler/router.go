package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/shopvest/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса shopvest.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Metrics)
	r.Use(custommiddleware.Logger(h.logger))

	// promhttp сжимает ответ сам.
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(custommiddleware.GzipMiddleware)
		h.apiRoutes(r)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

func (h *Handler) apiRoutes(r chi.Router) {
	r.Get("/api/tiers", h.GetTiers)

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/me", h.GetMe)
			r.Get("/stats", h.GetStats)
			r.Get("/team", h.GetTeam)

			r.Get("/bank", h.GetBank)
			r.Put("/bank", h.SaveBank)

			r.Post("/shops", h.SubmitShop)
			r.Get("/shops", h.GetShops)
			r.Post("/shops/free", h.ActivateFreeShop)
			r.Post("/shops/{id}/daily-claim", h.DailyClaim)
			r.Get("/shops/{id}/claimable", h.GetClaimable)
			r.Post("/shops/{id}/claim", h.RequestFinalClaim)

			r.Get("/claims", h.GetClaims)

			r.Post("/withdrawals", h.Withdraw)
			r.Get("/withdrawals", h.GetWithdrawals)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Get("/shops", h.ListShops)
		r.Post("/shops/{id}/approve", h.ApproveShop)
		r.Post("/shops/{id}/reject", h.RejectShop)

		r.Get("/claims", h.ListClaims)
		r.Post("/claims/{id}/resolve", h.ResolveClaim)

		r.Get("/withdrawals", h.ListWithdrawals)
		r.Post("/withdrawals/{id}/resolve", h.ResolveWithdrawal)

		r.Get("/backlog", h.GetBacklog)
	})
}
