package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/listening-companion/internal/platform/analytics"
	"github.com/example/listening-companion/internal/platform/api"
	"github.com/example/listening-companion/internal/platform/httpserver"
	"github.com/example/listening-companion/services/api/internal/store"
)

type createSessionRequest struct {
	ContentText          string  `json:"content_text"`
	ContentTitle         *string `json:"content_title"`
	TotalDurationSeconds *int    `json:"total_duration_seconds"`
}

type Sessions struct {
	Store     store.Store
	Analytics *analytics.Publisher
	Log       *zap.Logger
}

func (s Sessions) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req createSessionRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		if strings.TrimSpace(req.ContentText) == "" {
			api.BadRequest(w, "VALIDATION_ERROR", "content_text required", rid, nil)
			return
		}
		if req.ContentTitle != nil && strings.TrimSpace(*req.ContentTitle) == "" {
			req.ContentTitle = nil
		}
		if req.TotalDurationSeconds != nil && *req.TotalDurationSeconds <= 0 {
			req.TotalDurationSeconds = nil
		}

		uid := userID(r)
		sess, err := s.Store.CreateSession(r.Context(), store.CreateSessionParams{
			UserID:               uid,
			ContentText:          req.ContentText,
			ContentTitle:         req.ContentTitle,
			TotalDurationSeconds: req.TotalDurationSeconds,
		})
		if err != nil {
			internal(w, s.Log, rid, "create session", err)
			return
		}

		s.Analytics.Publish(analytics.SubjectSessionCreated, "listening_session_created", uid, map[string]any{
			"session_id": sess.ID,
			"words":      len(strings.Fields(req.ContentText)),
		})
		api.WriteJSON(w, http.StatusCreated, sess)
	}
}

func (s Sessions) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		limit := queryInt(r, "limit", 20)
		offset := queryInt(r, "offset", 0)
		sessions, total, err := s.Store.ListSessions(r.Context(), userID(r), limit, offset)
		if err != nil {
			internal(w, s.Log, rid, "list sessions", err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions, "total": total})
	}
}

func (s Sessions) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		sess, err := s.Store.GetSession(r.Context(), userID(r), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "SESSION_NOT_FOUND", "Session not found", rid)
				return
			}
			internal(w, s.Log, rid, "get session", err)
			return
		}
		api.WriteJSON(w, http.StatusOK, sess)
	}
}
