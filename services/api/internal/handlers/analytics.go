package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/listening-companion/internal/platform/api"
	"github.com/example/listening-companion/internal/platform/httpserver"
	"github.com/example/listening-companion/services/api/internal/store"
)

const scoreTrendSessions = 7

type Analytics struct {
	Store store.Store
	Now   func() time.Time
	Log   *zap.Logger
}

func (a Analytics) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

func (a Analytics) Dashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		d, err := a.Store.Dashboard(r.Context(), userID(r), a.now())
		if err != nil {
			internal(w, a.Log, rid, "dashboard", err)
			return
		}
		api.WriteJSON(w, http.StatusOK, d)
	}
}

func (a Analytics) ScoreTrends() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		trends, err := a.Store.ScoreTrends(r.Context(), userID(r), scoreTrendSessions)
		if err != nil {
			internal(w, a.Log, rid, "score trends", err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"score_trends": trends})
	}
}
