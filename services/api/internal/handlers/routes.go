package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/listening-companion/internal/platform/analytics"
	"github.com/example/listening-companion/internal/platform/auth"
	"github.com/example/listening-companion/services/api/internal/proxy"
	"github.com/example/listening-companion/services/api/internal/store"
	"github.com/example/listening-companion/services/api/internal/tokens"
)

// Deps is everything the API routes need. Analytics may be nil.
type Deps struct {
	Store     store.Store
	Tokens    tokens.Service
	Generator QuizGenerator
	Importer  ContentImporter
	Analytics *analytics.Publisher
	Proxy     proxy.Env
	Log       *zap.Logger

	// Now drives the analytics streak. Defaults to time.Now.
	Now func() time.Time
	// AuthLimiter guards register and login when set.
	AuthLimiter func(http.Handler) http.Handler
}

// Mount registers every API route on r. SetupRouter must run first.
func Mount(r chi.Router, d Deps) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	health := Health{Store: d.Store, ProxyEnv: d.Proxy}
	authH := Auth{Store: d.Store, Tokens: d.Tokens, Analytics: d.Analytics, Log: d.Log}
	sessions := Sessions{Store: d.Store, Analytics: d.Analytics, Log: d.Log}
	quiz := Quiz{Store: d.Store, Generator: d.Generator, Analytics: d.Analytics, Log: d.Log}
	stats := Analytics{Store: d.Store, Now: d.Now, Log: d.Log}
	content := Content{Importer: d.Importer, Analytics: d.Analytics, Log: d.Log}

	r.Get("/", health.Banner())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health.Status())
		r.Get("/health/db", health.Database())
		r.Get("/health/proxy", health.Proxy())

		r.Group(func(r chi.Router) {
			if d.AuthLimiter != nil {
				r.Use(d.AuthLimiter)
			}
			r.Post("/auth/register", authH.Register())
			r.Post("/auth/login", authH.Login())
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(d.Tokens.Verifier()))

			r.Get("/auth/me", authH.Me())

			r.Post("/sessions", sessions.Create())
			r.Get("/sessions", sessions.List())
			r.Get("/sessions/{id}", sessions.Get())

			r.Post("/quiz/generate", quiz.Generate())
			r.Post("/quiz/attempt", quiz.RecordAttempt())
			r.Get("/quiz/attempts/{sessionId}", quiz.ListAttempts())

			r.Get("/analytics/dashboard", stats.Dashboard())
			r.Get("/analytics/score-trends", stats.ScoreTrends())

			r.Post("/content/from-url", content.FromURL())
		})
	})
}
