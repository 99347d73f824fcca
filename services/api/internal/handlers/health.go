package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/example/listening-companion/internal/platform/api"
	"github.com/example/listening-companion/services/api/internal/proxy"
	"github.com/example/listening-companion/services/api/internal/store"
)

const dbCheckTimeout = 3 * time.Second

// Health serves the public status endpoints.
type Health struct {
	Store store.Store
	ProxyEnv proxy.Env
}

func (h Health) Banner() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"message": "Listening Companion API",
			"docs":    "All API routes are under /api",
			"endpoints": map[string]string{
				"health":    "GET /api/health",
				"health_db": "GET /api/health/db",
				"auth":      "POST /api/auth/register, POST /api/auth/login, GET /api/auth/me",
				"sessions":  "POST /api/sessions, GET /api/sessions, GET /api/sessions/{id}",
				"quiz":      "POST /api/quiz/generate, POST /api/quiz/attempt, GET /api/quiz/attempts/{sessionId}",
				"analytics": "GET /api/analytics/dashboard, GET /api/analytics/score-trends",
				"content":   "POST /api/content/from-url",
			},
		})
	}
}

func (h Health) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"message": "Listening Companion API is running",
		})
	}
}

func (h Health) Database() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), dbCheckTimeout)
		defer cancel()

		if err := h.Store.Ping(ctx); err != nil {
			api.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "error",
				"database": "disconnected",
				"error":    err.Error(),
			})
			return
		}
		tables, err := h.Store.ExistingTables(ctx)
		if err != nil {
			api.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "error",
				"database": "connected",
				"error":    err.Error(),
			})
			return
		}
		if tables == nil {
			tables = []string{}
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"database": "connected",
			"tables":   tables,
		})
	}
}

func (h Health) Proxy() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"configured": h.ProxyEnv.Configured(),
			"hint":       h.ProxyEnv.Hint(),
		})
	}
}
