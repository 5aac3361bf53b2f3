package security

import (
	"errors"
	"testing"
	"time"

	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
)

func TestJWTManagerRoundTripCarriesRole(t *testing.T) {
	mgr := NewJWTManager("iss", "aud", "abcdefghijklmnopqrstuvwxyz123456")
	raw, err := mgr.SignAccessToken("teacher-1", domain.RoleTeacher, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := mgr.ParseAccessToken(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	id := claims.Identity()
	if id.ID != "teacher-1" || !id.IsTeacher() {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestJWTManagerRejectsForeignSecretAndAudience(t *testing.T) {
	mgr := NewJWTManager("iss", "aud", "abcdefghijklmnopqrstuvwxyz123456")
	other := NewJWTManager("iss", "other-aud", "abcdefghijklmnopqrstuvwxyz123456")
	forged := NewJWTManager("iss", "aud", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")

	raw, err := other.SignAccessToken("s-1", domain.RoleStudent, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.ParseAccessToken(raw); err == nil {
		t.Fatal("expected audience mismatch to fail")
	}

	raw, err = forged.SignAccessToken("s-1", domain.RoleStudent, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.ParseAccessToken(raw); err == nil {
		t.Fatal("expected signature mismatch to fail")
	}
}

func TestJWTManagerRejectsExpiredAndUnknownRole(t *testing.T) {
	mgr := NewJWTManager("iss", "aud", "abcdefghijklmnopqrstuvwxyz123456")
	raw, err := mgr.SignAccessToken("s-1", domain.RoleStudent, -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.ParseAccessToken(raw); err == nil {
		t.Fatal("expected expired token to fail")
	}

	if _, err := mgr.SignAccessToken("s-1", domain.Role("admin"), time.Minute); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}
