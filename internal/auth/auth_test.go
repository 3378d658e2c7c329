package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	token, err := m.Issue("user-1", "tenant-1", "dono@pizzaria.com", "owner")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.UserID() != "user-1" || claims.TenantID != "tenant-1" || claims.Role != "owner" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m := NewTokenManager("test-secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := m.Issue("user-1", "tenant-1", "a@b.c", "staff")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	m.now = time.Now
	if _, err := m.Parse(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestParseRejectsForeignSecret(t *testing.T) {
	token, err := NewTokenManager("one", time.Hour).Issue("user-1", "", "a@b.c", "platform_admin")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := NewTokenManager("two", time.Hour).Parse(token); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{Role: "owner", RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}
	if _, err := NewTokenManager("secret", time.Hour).Parse(token); err == nil {
		t.Fatalf("unsigned token must be rejected")
	}
}

func TestIssueRequiresUserAndSecret(t *testing.T) {
	if _, err := NewTokenManager("secret", time.Hour).Issue("", "t", "e", "r"); err == nil {
		t.Errorf("empty user id must fail")
	}
	if _, err := NewTokenManager("", time.Hour).Issue("u", "t", "e", "r"); err == nil {
		t.Errorf("empty secret must fail")
	}
}

func TestPasswordHashing(t *testing.T) {
	if _, err := HashPassword("short"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	hash, err := HashPassword("calabresa123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !CheckPassword(hash, "calabresa123") {
		t.Errorf("correct password rejected")
	}
	if CheckPassword(hash, "mussarela123") {
		t.Errorf("wrong password accepted")
	}
}
