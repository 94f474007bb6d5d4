package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouteOptions carries the security settings applied to the router
type RouteOptions struct {
	CORSOrigins       []string
	RateLimitRPM      int
	TrustProxyHeaders bool
	RequestTimeout    time.Duration
}

func (h *Handler) Routes(m *Middleware, opts RouteOptions) *chi.Mux {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(m.ProxyHeaders(opts.TrustProxyHeaders))
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(m.CORS(opts.CORSOrigins))
	r.Use(m.RateLimit(opts.RateLimitRPM))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/v1", func(r chi.Router) {
		// Live updates stay open, so no timeout or compression
		r.Get("/stream", h.HandleSSE)
		r.Get("/ws", h.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(m.Compress)
			r.Use(m.Timeout(opts.RequestTimeout))

			// Blog
			r.Route("/posts", func(r chi.Router) {
				r.Get("/", h.ListPosts)
				r.Get("/{id}", h.GetPost)

				r.Group(func(r chi.Router) {
					r.Use(m.AdminOnly)
					r.Post("/", h.CreatePost)
					r.Put("/{id}", h.UpdatePost)
					r.Delete("/{id}", h.DeletePost)
				})
			})

			// Static site content
			r.Route("/site", func(r chi.Router) {
				r.Get("/", h.GetSite)
				r.Get("/services", h.ListServices)
				r.Get("/services/{slug}", h.GetService)
				r.Get("/stats", h.GetStats)
				r.Get("/about", h.GetAbout)
				r.Get("/contact", h.GetContactInfo)
			})

			// Contact form
			r.Post("/contact", h.SubmitContact)
			r.With(m.AdminOnly).Get("/contact/messages", h.ListContactMessages)
		})
	})

	return r
}
