package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	if s.metrics != nil {
		r.Use(s.metrics.Handler)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", s.handleDashboard)
	r.Get("/scrape_status", s.handleScrapeStatus)
	r.Post("/upload_document", s.handleUploadDocument)
	r.Post("/launch_manual_scrape", s.handleLaunchScrape)
	r.Post("/clear", s.handleClear)

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Get("/status", s.handleStatusPeek)
	})

	return r
}
