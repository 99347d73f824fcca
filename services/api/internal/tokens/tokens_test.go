package tokens

import (
	"strings"
	"testing"
	"time"
)

func newService() Service {
	return Service{
		Secret:         []byte("test-jwt-secret-32-bytes-padded!"),
		AccessTokenTTL: 7 * 24 * time.Hour,
	}
}

// ─── NewAccessToken tests ────────────────────────────────────────────────────

func TestNewAccessToken_RoundTrip(t *testing.T) {
	svc := newService()
	now := time.Now().UTC()

	tok, exp, err := svc.NewAccessToken("user-1", "u@example.com", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := exp.Sub(now); got != 7*24*time.Hour {
		t.Fatalf("expected 7 day expiry, got %v", got)
	}

	claims, err := svc.Verifier().Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject 'user-1', got %q", claims.Subject)
	}
	if claims.Email != "u@example.com" {
		t.Fatalf("expected email claim, got %q", claims.Email)
	}
}

func TestNewAccessToken_MissingSecret(t *testing.T) {
	svc := Service{AccessTokenTTL: time.Hour}
	if _, _, err := svc.NewAccessToken("user-1", "", time.Now()); err == nil {
		t.Fatal("expected error when secret is empty")
	}
}

func TestNewAccessToken_MissingSubject(t *testing.T) {
	if _, _, err := newService().NewAccessToken("", "", time.Now()); err == nil {
		t.Fatal("expected error when subject is empty")
	}
}

func TestNewAccessToken_ZeroTTL_DefaultsToWeek(t *testing.T) {
	svc := Service{Secret: []byte("s")}
	now := time.Now().UTC()
	_, exp, err := svc.NewAccessToken("user-1", "", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exp.Sub(now) != 7*24*time.Hour {
		t.Fatalf("expected default ttl, got %v", exp.Sub(now))
	}
}

// ─── Verification failures ───────────────────────────────────────────────────

func TestVerify_Expired(t *testing.T) {
	svc := Service{Secret: []byte("test-jwt-secret-32-bytes-padded!"), AccessTokenTTL: time.Minute}
	tok, _, err := svc.NewAccessToken("user-1", "", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	if _, err := svc.Verifier().Parse(tok); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, _, err := newService().NewAccessToken("user-1", "", time.Now())
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	other := Service{Secret: []byte("different-secret-32-bytes-padded")}
	if _, err := other.Verifier().Parse(tok); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	svc := newService()
	tok, _, err := svc.NewAccessToken("user-1", "", time.Now())
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatal("expected 3 parts")
	}
	if _, err := svc.Verifier().Parse(parts[0] + ".dGFtcGVyZWQ." + parts[2]); err == nil {
		t.Fatal("expected error for tampered token")
	}
}
