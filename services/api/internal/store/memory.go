package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/listening-companion/services/api/internal/domain"
)

// Memory is a development and test implementation of Store.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]UserRow // id -> row
	byEmail  map[string]string  // lowercased email -> id
	sessions map[string]domain.Session
	attempts map[string][]domain.QuizAttempt // session id -> attempts in insert order
	now      func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]UserRow),
		byEmail:  make(map[string]string),
		sessions: make(map[string]domain.Session),
		attempts: make(map[string][]domain.QuizAttempt),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the timestamp source for new rows.
func (s *Memory) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Memory) Ping(context.Context) error { return nil }

func (s *Memory) ExistingTables(context.Context) ([]string, error) {
	return append([]string(nil), Tables...), nil
}

func (s *Memory) CreateUser(_ context.Context, p CreateUserParams) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(p.Email))
	if _, ok := s.byEmail[email]; ok {
		return domain.User{}, ErrConflict
	}
	u := domain.User{ID: uuid.NewString(), Email: email, SubscriptionTier: "free", CreatedAt: s.now()}
	s.users[u.ID] = UserRow{User: u, PasswordHash: p.PasswordHash}
	s.byEmail[email] = u.ID
	return u, nil
}

func (s *Memory) FindUserByEmail(_ context.Context, email string) (UserRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return UserRow{}, ErrNotFound
	}
	return s.users[id], nil
}

func (s *Memory) UserByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return row.User, nil
}

func (s *Memory) CreateSession(_ context.Context, p CreateSessionParams) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := domain.Session{
		ID:                   uuid.NewString(),
		UserID:               p.UserID,
		ContentText:          p.ContentText,
		ContentTitle:         p.ContentTitle,
		TotalDurationSeconds: p.TotalDurationSeconds,
		CreatedAt:            s.now(),
	}
	s.sessions[sess.ID] = sess

	out := sess
	out.ContentText = ""
	return out, nil
}

func (s *Memory) ListSessions(_ context.Context, userID string, limit, offset int) ([]domain.Session, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit, offset = clampPage(limit, offset)
	owned := s.ownedLocked(userID)
	total := len(owned)

	out := []domain.Session{}
	for i := offset; i < len(owned) && len(out) < limit; i++ {
		sess := owned[i]
		sess.UserID = ""
		sess.ContentText = ""
		out = append(out, sess)
	}
	return out, total, nil
}

func (s *Memory) GetSession(_ context.Context, userID, sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return domain.Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *Memory) CreateAttempt(_ context.Context, userID string, p CreateAttemptParams) (domain.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[p.SessionID]
	if !ok || sess.UserID != userID {
		return domain.QuizAttempt{}, ErrNotFound
	}
	a := domain.QuizAttempt{
		ID:            uuid.NewString(),
		SessionID:     p.SessionID,
		Question:      p.Question,
		Options:       append([]byte(nil), p.Options...),
		UserAnswer:    p.UserAnswer,
		CorrectAnswer: p.CorrectAnswer,
		IsCorrect:     p.IsCorrect,
		CreatedAt:     s.now(),
	}
	s.attempts[p.SessionID] = append(s.attempts[p.SessionID], a)

	out := a
	out.Options = nil
	return out, nil
}

func (s *Memory) ListAttempts(_ context.Context, userID, sessionID string) ([]domain.QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return nil, ErrNotFound
	}
	return append([]domain.QuizAttempt{}, s.attempts[sessionID]...), nil
}

func (s *Memory) Dashboard(_ context.Context, userID string, now time.Time) (domain.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		d       domain.Dashboard
		correct int
		seen    = map[time.Time]bool{}
		days    []time.Time
	)
	for _, sess := range s.ownedLocked(userID) {
		atts := s.attempts[sess.ID]
		if len(atts) == 0 {
			continue
		}
		d.SessionsWithQuizzes++
		for _, a := range atts {
			d.TotalQuizzesCompleted++
			if a.IsCorrect {
				correct++
			}
			day := truncateDay(a.CreatedAt)
			if !seen[day] {
				seen[day] = true
				days = append(days, day)
			}
		}
	}
	if d.TotalQuizzesCompleted > 0 {
		d.AverageComprehensionScore = roundScore(100 * float64(correct) / float64(d.TotalQuizzesCompleted))
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	d.DailyStreak = DailyStreak(days, now)
	return d, nil
}

func (s *Memory) ScoreTrends(_ context.Context, userID string, limit int) ([]domain.ScoreTrend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 7
	}
	out := []domain.ScoreTrend{}
	for _, sess := range s.ownedLocked(userID) {
		if len(out) == limit {
			break
		}
		atts := s.attempts[sess.ID]
		if len(atts) == 0 {
			continue
		}
		correct := 0
		for _, a := range atts {
			if a.IsCorrect {
				correct++
			}
		}
		out = append(out, domain.ScoreTrend{
			SessionID:    sess.ID,
			ContentTitle: sess.ContentTitle,
			Date:         sess.CreatedAt.UTC().Format(time.DateOnly),
			Score:        roundScore(100 * float64(correct) / float64(len(atts))),
			Attempts:     len(atts),
		})
	}
	return out, nil
}

// ownedLocked returns the user's sessions newest first. Callers hold mu.
func (s *Memory) ownedLocked(userID string) []domain.Session {
	var owned []domain.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			owned = append(owned, sess)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.After(owned[j].CreatedAt)
		}
		return owned[i].ID > owned[j].ID
	})
	return owned
}
