// Package httpapi assembles the HTTP routing surface.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"showcase/internal/http/handlers"
	"showcase/internal/middleware"
)

// Options tunes the cross-cutting request middleware. StaticDir, when set,
// serves that directory under /static/ so locally stored uploads resolve.
type Options struct {
	Logger          zerolog.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	StaticDir       string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
	)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.AllowedOrigins))
	}

	r.Get("/v1/healthz", app.Health)

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		if opts.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		}
		r.Post("/generate-short", app.GenerateShort)
		r.Post("/short-form-avatar", app.ShortFormAvatar)
		r.Post("/generate-wearable", app.GenerateWearable)
		r.Post("/generate-product", app.GenerateProduct)
		r.Get("/status/{requestId}", app.Status)
		r.Get("/jobs", app.Jobs)
	})

	return r
}
