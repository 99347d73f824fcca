package tokens

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/listening-companion/internal/platform/auth"
)

// Service issues the API's bearer tokens. Verification lives in the
// platform auth package so every consumer shares one claim shape.
type Service struct {
	Secret         []byte
	AccessTokenTTL time.Duration
}

func (s Service) NewAccessToken(userID, email string, now time.Time) (string, time.Time, error) {
	if len(s.Secret) == 0 {
		return "", time.Time{}, errors.New("missing jwt secret")
	}
	if userID == "" {
		return "", time.Time{}, errors.New("missing subject")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ttl := s.AccessTokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	exp := now.Add(ttl)

	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verifier returns the matching verifier for RequireUser.
func (s Service) Verifier() auth.JWTVerifier {
	return auth.JWTVerifier{Secret: s.Secret}
}
