package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/listening-companion/internal/platform/analytics"
	"github.com/example/listening-companion/internal/platform/api"
	"github.com/example/listening-companion/internal/platform/httpserver"
	"github.com/example/listening-companion/services/api/internal/domain"
	"github.com/example/listening-companion/services/api/internal/store"
	"github.com/example/listening-companion/services/api/internal/tokens"
)

const (
	minPasswordLen = 6
	bcryptCost     = 10
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authUser struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	SubscriptionTier string `json:"subscription_tier"`
}

type authResponse struct {
	User  authUser `json:"user"`
	Token string   `json:"token"`
}

// Auth bundles what the credential endpoints need.
type Auth struct {
	Store     store.Store
	Tokens    tokens.Service
	Analytics *analytics.Publisher
	Log       *zap.Logger
}

func (a Auth) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req credentialsRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))
		if email == "" || req.Password == "" {
			api.BadRequest(w, "VALIDATION_ERROR", "Email and password required", rid, nil)
			return
		}
		if len(req.Password) < minPasswordLen {
			api.BadRequest(w, "VALIDATION_ERROR", "Password must be at least 6 characters", rid, nil)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			internal(w, a.Log, rid, "hash password", err)
			return
		}
		u, err := a.Store.CreateUser(r.Context(), store.CreateUserParams{Email: email, PasswordHash: string(hash)})
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				api.Conflict(w, "EMAIL_TAKEN", "Email already registered", rid, nil)
				return
			}
			internal(w, a.Log, rid, "create user", err)
			return
		}

		tok, _, err := a.Tokens.NewAccessToken(u.ID, u.Email, time.Now().UTC())
		if err != nil {
			internal(w, a.Log, rid, "issue token", err)
			return
		}

		a.Analytics.Publish(analytics.SubjectAuthRegistered, "user_registered", u.ID, map[string]any{
			"email": u.Email,
		})
		api.WriteJSON(w, http.StatusCreated, toAuthResponse(u, tok))
	}
}

func (a Auth) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req credentialsRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			api.BadRequest(w, "VALIDATION_ERROR", "Email and password required", rid, nil)
			return
		}

		row, err := a.Store.FindUserByEmail(r.Context(), req.Email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.Unauthorized(w, "INVALID_CREDENTIALS", "Invalid email or password", rid)
				return
			}
			internal(w, a.Log, rid, "find user", err)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(req.Password)) != nil {
			api.Unauthorized(w, "INVALID_CREDENTIALS", "Invalid email or password", rid)
			return
		}

		tok, _, err := a.Tokens.NewAccessToken(row.User.ID, row.User.Email, time.Now().UTC())
		if err != nil {
			internal(w, a.Log, rid, "issue token", err)
			return
		}

		a.Analytics.Publish(analytics.SubjectAuthLoggedIn, "user_logged_in", row.User.ID, nil)
		api.WriteJSON(w, http.StatusOK, toAuthResponse(row.User, tok))
	}
}

func (a Auth) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		u, err := a.Store.UserByID(r.Context(), userID(r))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "USER_NOT_FOUND", "User not found", rid)
				return
			}
			internal(w, a.Log, rid, "load user", err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"user": u})
	}
}

func toAuthResponse(u domain.User, token string) authResponse {
	return authResponse{
		User:  authUser{ID: u.ID, Email: u.Email, SubscriptionTier: u.SubscriptionTier},
		Token: token,
	}
}
