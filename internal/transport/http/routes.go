package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"curation-service/internal/logger"
)

// RouterDeps are the pieces Routes needs besides the handler.
type RouterDeps struct {
	// ServiceName labels tracing spans.
	ServiceName string
	Verifier    TokenVerifier
	// Gatherer backs /metrics. Nil leaves the route out.
	Gatherer prometheus.Gatherer
	Checkers map[string]HealthChecker
	Log      *logger.Logger
}

func Routes(h *Handler, deps RouterDeps) http.Handler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	serviceName := deps.ServiceName
	if serviceName == "" {
		serviceName = "curation-api"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(log))
	r.Use(Tracing(serviceName))

	r.Get("/health", health)
	r.Get("/ready", ready(deps.Checkers))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Group(func(r chi.Router) {
		r.Use(RequireSession(deps.Verifier, log))

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", h.CreateJob)
			r.Get("/", h.ListJobs)
			r.Get("/{id}", h.GetJob)
			r.Post("/{id}/cancel", h.CancelJob)
			r.Post("/{id}/retry", h.RetryJob)
		})
		r.Post("/rescore", h.Rescore)

		r.Route("/weight-configs", func(r chi.Router) {
			r.Get("/", h.ListConfigs)
			r.Post("/", h.CreateConfig)
			r.Get("/active", h.GetActiveConfig)
			r.Get("/{id}", h.GetConfig)
			r.Delete("/{id}", h.DeleteConfig)
			r.Post("/{id}/activate", h.ActivateConfig)
			r.Post("/{id}/deactivate", h.DeactivateConfig)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", h.ListPosts)
			r.Post("/preview", h.PreviewPosts)
			r.Post("/bulk", h.BulkAction)
		})
		r.Post("/search", h.Search)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.GetSettings)
			r.Patch("/", h.PatchSettings)
			r.Get("/novelty-preview", h.NoveltyPreview)
		})
	})

	return r
}
