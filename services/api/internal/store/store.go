package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/example/listening-companion/services/api/internal/domain"
)

var (
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
)

// Tables lists the tables the schema owns; /api/health/db reports which exist.
var Tables = []string{"listening_sessions", "quiz_attempts", "users"}

// Store is the persistence contract for the API. Every session-scoped call
// takes the caller's user id and treats sessions owned by someone else as
// missing.
type Store interface {
	CreateUser(ctx context.Context, p CreateUserParams) (domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (UserRow, error)
	UserByID(ctx context.Context, id string) (domain.User, error)

	CreateSession(ctx context.Context, p CreateSessionParams) (domain.Session, error)
	ListSessions(ctx context.Context, userID string, limit, offset int) ([]domain.Session, int, error)
	GetSession(ctx context.Context, userID, sessionID string) (domain.Session, error)

	CreateAttempt(ctx context.Context, userID string, p CreateAttemptParams) (domain.QuizAttempt, error)
	ListAttempts(ctx context.Context, userID, sessionID string) ([]domain.QuizAttempt, error)

	Dashboard(ctx context.Context, userID string, now time.Time) (domain.Dashboard, error)
	ScoreTrends(ctx context.Context, userID string, limit int) ([]domain.ScoreTrend, error)

	Ping(ctx context.Context) error
	ExistingTables(ctx context.Context) ([]string, error)
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
}

type UserRow struct {
	User         domain.User
	PasswordHash string
}

type CreateSessionParams struct {
	UserID               string
	ContentText          string
	ContentTitle         *string
	TotalDurationSeconds *int
}

type CreateAttemptParams struct {
	SessionID     string
	Question      string
	Options       json.RawMessage
	UserAnswer    string
	CorrectAnswer string
	IsCorrect     bool
}

// DailyStreak counts consecutive UTC days with quiz activity ending today.
// days must be distinct and sorted newest first. No activity today means 0.
func DailyStreak(days []time.Time, now time.Time) int {
	expected := truncateDay(now)
	streak := 0
	for _, d := range days {
		if !truncateDay(d).Equal(expected) {
			break
		}
		streak++
		expected = expected.AddDate(0, 0, -1)
	}
	return streak
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// roundScore rounds a percentage to two decimals.
func roundScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	return float64(int64(v*100+0.5)) / 100
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
