// Package http provides the HTTP delivery layer for the shortener service:
// the router, the handlers and the typed request/response schemas.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"
)

// NewRouter initializes a chi router with middleware and the full route table.
// The catch-all /{shortPath} redirect route is registered last so the static
// prefixes (healthcheck, api, swagger, docs) take precedence over it.
func NewRouter(logger *httplog.Logger, svc urlService) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"POST", "GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	h := newURLHandler(svc, validator.New())

	r.Get("/healthcheck", handleHealthcheck)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))
	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	r.Route("/api/urls", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		r.Post("/", h.createURL)
		r.Get("/", h.listURLs)

		r.Route("/{shortPath}", func(r chi.Router) {
			r.Put("/", h.updateURL)
			r.Delete("/", h.deleteURL)
			r.Get("/stats", h.getURLStats)
		})
	})

	r.Get("/{shortPath}", h.redirect)

	return r
}
