package domain

import (
	"encoding/json"
	"time"
)

type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	SubscriptionTier string    `json:"subscription_tier"`
	CreatedAt        time.Time `json:"created_at"`
}

// Session is one listening session. ContentText is omitted from list views.
type Session struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id,omitempty"`
	ContentText          string    `json:"content_text,omitempty"`
	ContentTitle         *string   `json:"content_title"`
	TotalDurationSeconds *int      `json:"total_duration_seconds"`
	CreatedAt            time.Time `json:"created_at"`
}

// QuizAttempt is one answered question. Options is kept as the raw JSON
// object the client sent.
type QuizAttempt struct {
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
