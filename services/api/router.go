package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	allowed := a.config.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", identityHeader},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Public token-scoped surface. The token is the only credential, so
		// rate limit by IP to slow enumeration attempts.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(60, time.Minute))
			r.Route("/respond/{token}", func(r chi.Router) {
				r.Get("/", a.handleOutstanding)
				r.Put("/answers/{questionID}", a.handleSubmitAnswer)
				r.Post("/answers/{questionID}", a.handleSubmitAnswer)
				r.Get("/media/{mediaID}", a.handleMediaStatus)
				r.Post("/claim", a.handleClaim)
			})
		})

		// Authenticated surface; identity arrives from the session gateway.
		r.Post("/sets", a.handleCreateSet)
		r.Get("/sets", a.handleListSets)
		r.Put("/sets/{setID}", a.handleUpdateSet)
		r.Post("/sets/{setID}/archive", a.handleArchiveSet)
		r.Get("/sets/unified", a.handleUnifiedSets)
		r.Get("/sets/{setID}/detail", a.handleSetDetail)
		r.Post("/requests", a.handleDispatch)
		r.Post("/recipients/{recipientID}/remind", a.handleManualRemind)
		r.Post("/recipients/{recipientID}/deactivate", a.handleDeactivateRecipient)
	})

	return r, nil
}
