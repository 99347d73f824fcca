package remote

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/listening-companion/services/listener/internal/playback"
)

type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	SubscriptionTier string `json:"subscription_tier"`
}

type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type SessionSummary struct {
	ID              string
	Title           string
	DurationSeconds int
	CreatedAt       time.Time
}

type SessionPage struct {
	Sessions []SessionSummary
	Total    int
}

type Attempt struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	Question      string          `json:"question"`
	Options       json.RawMessage `json:"options,omitempty"`
	UserAnswer    string          `json:"user_answer"`
	CorrectAnswer string          `json:"correct_answer"`
	IsCorrect     bool            `json:"is_correct"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Dashboard struct {
	TotalQuizzesCompleted     int     `json:"total_quizzes_completed"`
	AverageComprehensionScore float64 `json:"average_comprehension_score"`
	DailyStreak               int     `json:"daily_streak"`
	SessionsWithQuizzes       int     `json:"sessions_with_quizzes"`
}

type ScoreTrend struct {
	SessionID    string  `json:"session_id"`
	ContentTitle *string `json:"content_title"`
	Date         string  `json:"date"`
	Score        float64 `json:"score"`
	Attempts     int     `json:"attempts"`
}

type Imported struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

// ─── wire types ─────────────────────────────────────────────────────────────

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createSessionRequest struct {
	ContentText          string  `json:"content_text"`
	ContentTitle         *string `json:"content_title,omitempty"`
	TotalDurationSeconds *int    `json:"total_duration_seconds,omitempty"`
}

type sessionDTO struct {
	ID                   string    `json:"id"`
	ContentText          string    `json:"content_text"`
	ContentTitle         *string   `json:"content_title"`
	TotalDurationSeconds *int      `json:"total_duration_seconds"`
	CreatedAt            time.Time `json:"created_at"`
}

func (s sessionDTO) toSession() playback.Session {
	return playback.Session{
		ID:        s.ID,
		Title:     deref(s.ContentTitle),
		Content:   s.ContentText,
		CreatedAt: s.CreatedAt,
	}
}

type generateRequest struct {
	Content    string `json:"content"`
	Difficulty string `json:"difficulty"`
}

type attemptRequest struct {
	SessionID     string            `json:"session_id"`
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	UserAnswer    string            `json:"user_answer"`
	CorrectAnswer string            `json:"correct_answer"`
	IsCorrect     *bool             `json:"is_correct"`
}

type quizDTO struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   *string           `json:"explanation"`
}

// toQuiz converts and validates the payload. Anything but options A to D
// with a correct key among them is playback.ErrFormat.
func (q quizDTO) toQuiz() (playback.Quiz, error) {
	out := playback.Quiz{
		Question:    strings.TrimSpace(q.Question),
		Options:     make(map[playback.Key]string, len(q.Options)),
		Explanation: deref(q.Explanation),
	}
	for k, v := range q.Options {
		key, ok := playback.ParseKey(k)
		if !ok {
			return playback.Quiz{}, fmt.Errorf("%w: unexpected option key %q", playback.ErrFormat, k)
		}
		out.Options[key] = v
	}
	key, ok := playback.ParseKey(q.CorrectAnswer)
	if !ok {
		return playback.Quiz{}, fmt.Errorf("%w: unexpected correct answer %q", playback.ErrFormat, q.CorrectAnswer)
	}
	out.CorrectKey = key
	if err := out.Validate(); err != nil {
		return playback.Quiz{}, err
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
