package store

import (
	"context"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/listening-companion/services/api/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// Postgres implements Store on a pgx pool.
type Postgres struct {
	DB *pgxpool.Pool
}

var _ Store = Postgres{}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s Postgres) Migrate(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, schemaSQL)
	return err
}

func (s Postgres) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func (s Postgres) ExistingTables(ctx context.Context) ([]string, error) {
	q := `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'public' AND table_name = ANY($1)
ORDER BY table_name;
`
	rows, err := s.DB.Query(ctx, q, Tables)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s Postgres) CreateUser(ctx context.Context, p CreateUserParams) (domain.User, error) {
	q := `
INSERT INTO users (id, email, password_hash)
VALUES ($1, $2, $3)
RETURNING id::text, email, subscription_tier, created_at;
`
	var u domain.User
	err := s.DB.QueryRow(ctx, q, uuid.New(), strings.ToLower(strings.TrimSpace(p.Email)), p.PasswordHash).
		Scan(&u.ID, &u.Email, &u.SubscriptionTier, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, ErrConflict
		}
		return domain.User{}, err
	}
	return u, nil
}

func (s Postgres) FindUserByEmail(ctx context.Context, email string) (UserRow, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return UserRow{}, ErrNotFound
	}
	q := `
SELECT id::text, email, subscription_tier, created_at, password_hash
FROM users
WHERE email = $1
LIMIT 1;
`
	var row UserRow
	err := s.DB.QueryRow(ctx, q, email).Scan(&row.User.ID, &row.User.Email, &row.User.SubscriptionTier, &row.User.CreatedAt, &row.PasswordHash)
	if err != nil {
		return UserRow{}, notFound(err)
	}
	return row, nil
}

func (s Postgres) UserByID(ctx context.Context, id string) (domain.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return domain.User{}, ErrNotFound
	}
	q := `SELECT id::text, email, subscription_tier, created_at FROM users WHERE id = $1;`
	var u domain.User
	if err := s.DB.QueryRow(ctx, q, uid).Scan(&u.ID, &u.Email, &u.SubscriptionTier, &u.CreatedAt); err != nil {
		return domain.User{}, notFound(err)
	}
	return u, nil
}

func (s Postgres) CreateSession(ctx context.Context, p CreateSessionParams) (domain.Session, error) {
	uid, err := uuid.Parse(p.UserID)
	if err != nil {
		return domain.Session{}, ErrNotFound
	}
	q := `
INSERT INTO listening_sessions (id, user_id, content_text, content_title, total_duration_seconds)
VALUES ($1, $2, $3, $4, $5)
RETURNING id::text, user_id::text, content_title, total_duration_seconds, created_at;
`
	var sess domain.Session
	err = s.DB.QueryRow(ctx, q, uuid.New(), uid, p.ContentText, p.ContentTitle, p.TotalDurationSeconds).
		Scan(&sess.ID, &sess.UserID, &sess.ContentTitle, &sess.TotalDurationSeconds, &sess.CreatedAt)
	if err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

func (s Postgres) ListSessions(ctx context.Context, userID string, limit, offset int) ([]domain.Session, int, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return []domain.Session{}, 0, nil
	}
	limit, offset = clampPage(limit, offset)

	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM listening_sessions WHERE user_id = $1;`, uid).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `
SELECT id::text, content_title, total_duration_seconds, created_at
FROM listening_sessions
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;
`
	rows, err := s.DB.Query(ctx, q, uid, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]domain.Session, 0, limit)
	for rows.Next() {
		var sess domain.Session
		if err := rows.Scan(&sess.ID, &sess.ContentTitle, &sess.TotalDurationSeconds, &sess.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, sess)
	}
	return out, total, rows.Err()
}

func (s Postgres) GetSession(ctx context.Context, userID, sessionID string) (domain.Session, error) {
	uid, err1 := uuid.Parse(userID)
	sid, err2 := uuid.Parse(sessionID)
	if err1 != nil || err2 != nil {
		return domain.Session{}, ErrNotFound
	}
	q := `
SELECT id::text, user_id::text, content_text, content_title, total_duration_seconds, created_at
FROM listening_sessions
WHERE id = $1 AND user_id = $2;
`
	var sess domain.Session
	err := s.DB.QueryRow(ctx, q, sid, uid).
		Scan(&sess.ID, &sess.UserID, &sess.ContentText, &sess.ContentTitle, &sess.TotalDurationSeconds, &sess.CreatedAt)
	if err != nil {
		return domain.Session{}, notFound(err)
	}
	return sess, nil
}

func (s Postgres) CreateAttempt(ctx context.Context, userID string, p CreateAttemptParams) (domain.QuizAttempt, error) {
	if err := s.ownsSession(ctx, userID, p.SessionID); err != nil {
		return domain.QuizAttempt{}, err
	}
	q := `
INSERT INTO quiz_attempts (id, session_id, question, options, user_answer, correct_answer, is_correct)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id::text, session_id::text, question, user_answer, correct_answer, is_correct, created_at;
`
	var a domain.QuizAttempt
	err := s.DB.QueryRow(ctx, q, uuid.New(), p.SessionID, p.Question, p.Options, p.UserAnswer, p.CorrectAnswer, p.IsCorrect).
		Scan(&a.ID, &a.SessionID, &a.Question, &a.UserAnswer, &a.CorrectAnswer, &a.IsCorrect, &a.CreatedAt)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	return a, nil
}

func (s Postgres) ListAttempts(ctx context.Context, userID, sessionID string) ([]domain.QuizAttempt, error) {
	if err := s.ownsSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	q := `
SELECT id::text, session_id::text, question, options, user_answer, correct_answer, is_correct, created_at
FROM quiz_attempts
WHERE session_id = $1
ORDER BY created_at ASC;
`
	rows, err := s.DB.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.QuizAttempt{}
	for rows.Next() {
		var a domain.QuizAttempt
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Question, &a.Options, &a.UserAnswer, &a.CorrectAnswer, &a.IsCorrect, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s Postgres) Dashboard(ctx context.Context, userID string, now time.Time) (domain.Dashboard, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return domain.Dashboard{}, nil
	}
	q := `
SELECT COUNT(qa.id),
       COALESCE(AVG(CASE WHEN qa.is_correct THEN 100.0 ELSE 0.0 END), 0)::float8,
       COUNT(DISTINCT qa.session_id)
FROM quiz_attempts qa
JOIN listening_sessions ls ON qa.session_id = ls.id
WHERE ls.user_id = $1;
`
	var d domain.Dashboard
	var avg float64
	if err := s.DB.QueryRow(ctx, q, uid).Scan(&d.TotalQuizzesCompleted, &avg, &d.SessionsWithQuizzes); err != nil {
		return domain.Dashboard{}, err
	}
	d.AverageComprehensionScore = roundScore(avg)

	dq := `
SELECT DISTINCT (qa.created_at AT TIME ZONE 'UTC')::date AS quiz_date
FROM quiz_attempts qa
JOIN listening_sessions ls ON qa.session_id = ls.id
WHERE ls.user_id = $1
ORDER BY quiz_date DESC;
`
	rows, err := s.DB.Query(ctx, dq, uid)
	if err != nil {
		return domain.Dashboard{}, err
	}
	days, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return domain.Dashboard{}, err
	}
	d.DailyStreak = DailyStreak(days, now)
	return d, nil
}

func (s Postgres) ScoreTrends(ctx context.Context, userID string, limit int) ([]domain.ScoreTrend, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return []domain.ScoreTrend{}, nil
	}
	if limit <= 0 {
		limit = 7
	}
	q := `
SELECT ls.id::text,
       ls.content_title,
       ls.created_at,
       COUNT(qa.id),
       AVG(CASE WHEN qa.is_correct THEN 100.0 ELSE 0.0 END)::float8
FROM listening_sessions ls
JOIN quiz_attempts qa ON qa.session_id = ls.id
WHERE ls.user_id = $1
GROUP BY ls.id, ls.content_title, ls.created_at
ORDER BY ls.created_at DESC
LIMIT $2;
`
	rows, err := s.DB.Query(ctx, q, uid, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ScoreTrend{}
	for rows.Next() {
		var (
			tr      domain.ScoreTrend
			created time.Time
			score   float64
		)
		if err := rows.Scan(&tr.SessionID, &tr.ContentTitle, &created, &tr.Attempts, &score); err != nil {
			return nil, err
		}
		tr.Date = created.UTC().Format(time.DateOnly)
		tr.Score = roundScore(score)
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (s Postgres) ownsSession(ctx context.Context, userID, sessionID string) error {
	uid, err1 := uuid.Parse(userID)
	sid, err2 := uuid.Parse(sessionID)
	if err1 != nil || err2 != nil {
		return ErrNotFound
	}
	var one int
	err := s.DB.QueryRow(ctx, `SELECT 1 FROM listening_sessions WHERE id = $1 AND user_id = $2;`, sid, uid).Scan(&one)
	return notFound(err)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
