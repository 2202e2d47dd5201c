package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}

	token, err := issuer.GenerateUserToken("user-42")
	if err != nil {
		t.Fatalf("GenerateUserToken failed: %v", err)
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != "user-42" {
		t.Errorf("Unexpected user ID: %q", claims.UserID)
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	issuer, _ := NewTokenIssuer("secret-a", time.Hour)
	other, _ := NewTokenIssuer("secret-b", time.Hour)

	token, _ := issuer.GenerateUserToken("user-1")
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("Token signed with a different secret must be rejected")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	issuer, _ := NewTokenIssuer("secret", -time.Hour)
	token, _ := issuer.GenerateUserToken("user-1")
	if _, err := issuer.ValidateToken(token); err == nil {
		t.Error("Expired token must be rejected")
	}
}

func TestEmptySecretRejected(t *testing.T) {
	if _, err := NewTokenIssuer("", time.Hour); err == nil {
		t.Error("Empty secret must be rejected")
	}
}
