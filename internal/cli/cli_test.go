package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
	"github.com/sandeepkv93/qr-attendance-service/internal/security"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_ACCESS_SECRET", "abcdefghijklmnopqrstuvwxyz123456")
	t.Setenv("TOKEN_HASH_PEPPER", "cli-test-pepper-0123")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:"+filepath.Join(t.TempDir(), "attendance.db"))
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommandMintsVerifiableToken(t *testing.T) {
	setTestEnv(t)
	out, err := execute(t, "token", "--subject", "student-7", "--role", "student", "--ttl", "5m")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	claims, err := security.NewJWTManager("qr-attendance", "qr-attendance-api", "abcdefghijklmnopqrstuvwxyz123456").ParseAccessToken(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("parse minted token: %v", err)
	}
	id := claims.Identity()
	if id.ID != "student-7" || id.Role != domain.RoleStudent {
		t.Fatalf("unexpected identity %+v", id)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl > 5*time.Minute || ttl < 4*time.Minute {
		t.Fatalf("unexpected ttl %s", ttl)
	}
}

func TestTokenCommandRejectsUnknownRole(t *testing.T) {
	setTestEnv(t)
	if _, err := execute(t, "token", "--subject", "x", "--role", "admin"); err == nil {
		t.Fatal("expected role validation error")
	}
	if _, err := execute(t, "token", "--role", "teacher"); err == nil {
		t.Fatal("expected subject validation error")
	}
}

func TestMigrateAndSweepCommands(t *testing.T) {
	setTestEnv(t)
	if _, err := execute(t, "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	out, err := execute(t, "sweep")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !strings.Contains(out, "expired 0 session(s)") {
		t.Fatalf("unexpected sweep output %q", out)
	}
}

func TestDisplayRequiresSessionAndTeacher(t *testing.T) {
	setTestEnv(t)
	if _, err := execute(t, "display", "--session", "abc"); err == nil {
		t.Fatal("expected missing teacher error")
	}
}
