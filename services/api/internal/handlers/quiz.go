package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/listening-companion/internal/platform/analytics"
	"github.com/example/listening-companion/internal/platform/api"
	"github.com/example/listening-companion/internal/platform/httpserver"
	"github.com/example/listening-companion/services/api/internal/llm"
	"github.com/example/listening-companion/services/api/internal/quizgen"
	"github.com/example/listening-companion/services/api/internal/store"
)

// QuizGenerator produces one shuffled multiple-choice question.
type QuizGenerator interface {
	Generate(ctx context.Context, content, difficulty string) (quizgen.Quiz, error)
}

type generateRequest struct {
	Content    string `json:"content"`
	Difficulty string `json:"difficulty"`
}

type attemptRequest struct {
	SessionID     string          `json:"session_id"`
	Question      string          `json:"question"`
	Options       json.RawMessage `json:"options"`
	UserAnswer    *string         `json:"user_answer"`
	CorrectAnswer *string         `json:"correct_answer"`
	IsCorrect     *bool           `json:"is_correct"`
}

type Quiz struct {
	Store     store.Store
	Generator QuizGenerator
	Analytics *analytics.Publisher
	Log       *zap.Logger
}

func (q Quiz) Generate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req generateRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			api.BadRequest(w, "VALIDATION_ERROR", "content (text chunk) required", rid, nil)
			return
		}

		difficulty := quizgen.NormalizeDifficulty(req.Difficulty)
		quiz, err := q.Generator.Generate(r.Context(), req.Content, difficulty)
		if err != nil {
			writeQuizError(w, q.Log, rid, err)
			return
		}

		q.Analytics.Publish(analytics.SubjectQuizGenerated, "quiz_generated", userID(r), map[string]any{
			"difficulty": difficulty,
		})
		api.WriteJSON(w, http.StatusOK, quiz)
	}
}

func writeQuizError(w http.ResponseWriter, log *zap.Logger, rid string, err error) {
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		api.ServiceUnavailable(w, "LLM_NOT_CONFIGURED", "OpenAI API not configured", rid)
	case errors.Is(err, llm.ErrInvalidKey):
		api.ServiceUnavailable(w, "LLM_INVALID_KEY", "Invalid OpenAI API key", rid)
	case errors.Is(err, llm.ErrUnavailable):
		api.ServiceUnavailable(w, "LLM_UNAVAILABLE", "Quiz generation is temporarily unavailable", rid)
	case errors.Is(err, quizgen.ErrFormat):
		log.Warn("quiz format", zap.String("request_id", rid), zap.Error(err))
		api.WriteError(w, http.StatusBadGateway, "INVALID_QUIZ_FORMAT", "Invalid quiz format from AI", rid, nil)
	default:
		log.Error("generate quiz", zap.String("request_id", rid), zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "QUIZ_GENERATION_FAILED", "Failed to generate quiz", rid, nil)
	}
}

func (q Quiz) RecordAttempt() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req attemptRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		opts := bytes.TrimSpace(req.Options)
		if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Question) == "" ||
			len(opts) == 0 || bytes.Equal(opts, []byte("null")) ||
			req.UserAnswer == nil || req.CorrectAnswer == nil || req.IsCorrect == nil {
			api.BadRequest(w, "VALIDATION_ERROR", "session_id, question, options, user_answer, correct_answer, is_correct required", rid, nil)
			return
		}

		uid := userID(r)
		attempt, err := q.Store.CreateAttempt(r.Context(), uid, store.CreateAttemptParams{
			SessionID:     req.SessionID,
			Question:      req.Question,
			Options:       json.RawMessage(opts),
			UserAnswer:    *req.UserAnswer,
			CorrectAnswer: *req.CorrectAnswer,
			IsCorrect:     *req.IsCorrect,
		})
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "SESSION_NOT_FOUND", "Session not found", rid)
				return
			}
			internal(w, q.Log, rid, "record attempt", err)
			return
		}

		q.Analytics.Publish(analytics.SubjectQuizAttempted, "quiz_attempted", uid, map[string]any{
			"session_id": attempt.SessionID,
			"is_correct": attempt.IsCorrect,
		})
		api.WriteJSON(w, http.StatusCreated, attempt)
	}
}

func (q Quiz) ListAttempts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		attempts, err := q.Store.ListAttempts(r.Context(), userID(r), chi.URLParam(r, "sessionId"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "SESSION_NOT_FOUND", "Session not found", rid)
				return
			}
			internal(w, q.Log, rid, "list attempts", err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
	}
}
