package http

import (
	"context"
	"net/http"
	"time"

	"linkauth/internal/httpx"
	"linkauth/internal/netutil"
	obsmw "linkauth/internal/observability/middleware"
	"linkauth/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	CookieName         string
	CookieSecure       bool
	SessionTTL         time.Duration
	AfterLoginURL      string
	LoginURL           string
	TrustProxy         bool
	RateLimitPerMinute int
	CORSOrigins        []string

	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

func NewRouter(auth service.AuthService, opts Options) http.Handler {
	if opts.CookieName == "" {
		opts.CookieName = "session"
	}
	h := &handler{auth: auth, opts: opts}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(obsmw.WithRequestAndTrace)
	r.Use(httpx.WithMetrics)
	r.Use(httpx.LogRequests)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", obsmw.HeaderRequestID, obsmw.HeaderTraceID},
			ExposedHeaders:   []string{obsmw.HeaderRequestID, obsmw.HeaderTraceID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ready != nil {
			if err := opts.Ready(r.Context()); err != nil {
				h.logFailure(r.Context(), "readiness check failed", err)
				writeError(w, http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/verify", h.verify)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if opts.RateLimitPerMinute > 0 {
				r.Use(httprate.Limit(opts.RateLimitPerMinute, time.Minute,
					httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
						return h.clientIP(r), nil
					}),
				))
			}
			r.Post("/auth/magic-link", h.requestMagicLink)
		})

		r.Post("/auth/logout", h.logout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)
			r.Get("/session", h.session)
			r.Get("/auth/qr-key", h.qrKey)
			r.Post("/auth/qr-key/email", h.emailQRKey)
		})
	})

	return r
}

func (h *handler) clientIP(r *http.Request) string {
	return netutil.ClientIP(r, h.opts.TrustProxy)
}
