// Package remote talks to the listening-companion API on behalf of the CLI.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/listening-companion/internal/platform/api"
	"github.com/example/listening-companion/services/listener/internal/playback"
)

const (
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 64 << 10
)

// APIError is a non-2xx answer from the API. It unwraps to the matching
// playback sentinel when there is one.
type APIError struct {
	Status  int
	Code    string
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

var (
	_ playback.SessionStore  = (*Client)(nil)
	_ playback.QuizGenerator = (*Client)(nil)
)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = strings.TrimSpace(token)
	return &cp
}

// ─── auth ───────────────────────────────────────────────────────────────────

func (c *Client) Register(ctx context.Context, email, password string) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/register", credentials{Email: email, Password: password}, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", credentials{Email: email, Password: password}, &out)
	return out, err
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out)
	return out.User, err
}

// ─── sessions ───────────────────────────────────────────────────────────────

func (c *Client) CreateSession(ctx context.Context, text, title string) (playback.Session, error) {
	req := createSessionRequest{ContentText: text}
	if t := strings.TrimSpace(title); t != "" {
		req.ContentTitle = &t
	}
	if words := len(strings.Fields(text)); words > 0 {
		secs := estimateSeconds(words)
		req.TotalDurationSeconds = &secs
	}
	var out sessionDTO
	if err := c.do(ctx, http.MethodPost, "/api/sessions", req, &out); err != nil {
		return playback.Session{}, err
	}
	s := out.toSession()
	if s.Content == "" {
		s.Content = text
	}
	return s, nil
}

func (c *Client) GetSession(ctx context.Context, id string) (playback.Session, error) {
	var out sessionDTO
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return playback.Session{}, err
	}
	return out.toSession(), nil
}

func (c *Client) ListSessions(ctx context.Context, limit, offset int) (SessionPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	var out struct {
		Sessions []sessionDTO `json:"sessions"`
		Total    int          `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/sessions?"+q.Encode(), nil, &out); err != nil {
		return SessionPage{}, err
	}
	page := SessionPage{Total: out.Total, Sessions: make([]SessionSummary, 0, len(out.Sessions))}
	for _, s := range out.Sessions {
		page.Sessions = append(page.Sessions, SessionSummary{
			ID:              s.ID,
			Title:           deref(s.ContentTitle),
			DurationSeconds: derefInt(s.TotalDurationSeconds),
			CreatedAt:       s.CreatedAt,
		})
	}
	return page, nil
}

// ─── quiz ───────────────────────────────────────────────────────────────────

// Generate asks the API for a question about excerpt. Malformed payloads,
// including a 502 INVALID_QUIZ_FORMAT, surface as playback.ErrFormat.
func (c *Client) Generate(ctx context.Context, excerpt string, d playback.Difficulty) (playback.Quiz, error) {
	var out quizDTO
	err := c.do(ctx, http.MethodPost, "/api/quiz/generate", generateRequest{Content: excerpt, Difficulty: string(d)}, &out)
	if err != nil {
		return playback.Quiz{}, err
	}
	return out.toQuiz()
}

func (c *Client) RecordQuizAttempt(ctx context.Context, a playback.QuizAttempt) (string, error) {
	opts := make(map[string]string, len(a.Options))
	for k, v := range a.Options {
		opts[string(k)] = v
	}
	correct := a.IsCorrect
	req := attemptRequest{
		SessionID:     a.SessionID,
		Question:      a.Question,
		Options:       opts,
		UserAnswer:    string(a.UserAnswer),
		CorrectAnswer: string(a.CorrectAnswer),
		IsCorrect:     &correct,
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/quiz/attempt", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) Attempts(ctx context.Context, sessionID string) ([]Attempt, error) {
	var out struct {
		Attempts []Attempt `json:"attempts"`
	}
	err := c.do(ctx, http.MethodGet, "/api/quiz/attempts/"+url.PathEscape(sessionID), nil, &out)
	return out.Attempts, err
}

// ─── analytics and import ───────────────────────────────────────────────────

func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var out Dashboard
	err := c.do(ctx, http.MethodGet, "/api/analytics/dashboard", nil, &out)
	return out, err
}

func (c *Client) ScoreTrends(ctx context.Context) ([]ScoreTrend, error) {
	var out struct {
		ScoreTrends []ScoreTrend `json:"score_trends"`
	}
	err := c.do(ctx, http.MethodGet, "/api/analytics/score-trends", nil, &out)
	return out.ScoreTrends, err
}

func (c *Client) ImportURL(ctx context.Context, rawURL string) (Imported, error) {
	var out Imported
	err := c.do(ctx, http.MethodPost, "/api/content/from-url", map[string]string{"url": rawURL}, &out)
	return out, err
}

// ─── transport ──────────────────────────────────────────────────────────────

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: encode %s: %w", path, err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("remote: build %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", playback.ErrServiceUnavailable, method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("remote: decode %s: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &APIError{Status: resp.StatusCode}

	var env api.ErrorResponse
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		e.Code = env.Error.Code
		e.Message = env.Error.Message
	} else {
		e.Message = strings.TrimSpace(string(raw))
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		e.kind = playback.ErrNotFound
	case resp.StatusCode == http.StatusServiceUnavailable:
		e.kind = playback.ErrServiceUnavailable
	case e.Code == "INVALID_QUIZ_FORMAT":
		e.kind = playback.ErrFormat
	}
	return e
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusUnauthorized
}

// estimateSeconds assumes the default 160 words per minute.
func estimateSeconds(words int) int {
	secs := words * 60 / 160
	if secs < 1 {
		secs = 1
	}
	return secs
}
