package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_ACCESS_SECRET", "abcdefghijklmnopqrstuvwxyz123456")
	t.Setenv("TOKEN_HASH_PEPPER", "pepper-pepper-pepper")
	t.Setenv("DATABASE_URL", "file::memory:?cache=shared")
}

// unsetForTest clears key for the duration of the test and restores it afterwards.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)
	for _, key := range []string{"TOKEN_ROTATION_WINDOW", "LATE_THRESHOLD", "SESSION_DEFAULT_TTL", "DAY_KEY_UTC_OFFSET", "DB_DRIVER", "RATE_LIMIT_FAILURE_MODE", "PUBLIC_BASE_URL"} {
		unsetForTest(t, key)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TokenRotationWindow != 60*time.Second {
		t.Fatalf("rotation window=%s want 60s", cfg.TokenRotationWindow)
	}
	if cfg.LateThreshold != 15*time.Minute {
		t.Fatalf("late threshold=%s want 15m", cfg.LateThreshold)
	}
	if cfg.SessionDefaultTTL != 210*24*time.Hour {
		t.Fatalf("session ttl=%s want 210 days", cfg.SessionDefaultTTL)
	}
	if cfg.DBDriver != DriverSQLite {
		t.Fatalf("driver=%q want sqlite", cfg.DBDriver)
	}
	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).In(cfg.DayKeyLocation()).Zone()
	if offset != 8*3600 {
		t.Fatalf("day key offset=%d want %d", offset, 8*3600)
	}
}

func TestLoadParseAndValidationErrors(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("TOKEN_ROTATION_WINDOW", "soon")
		_, err := Load("")
		if err == nil || classifyConfigLoadError(err) != "parse" {
			t.Fatalf("expected parse error, got %v", err)
		}
	})
	t.Run("short secret", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("JWT_ACCESS_SECRET", "short")
		_, err := Load("")
		if err == nil || classifyConfigLoadError(err) != "validation" {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
	t.Run("unknown driver", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("DB_DRIVER", "oracle")
		_, err := Load("")
		if err == nil || !strings.Contains(err.Error(), "DB_DRIVER") {
			t.Fatalf("expected DB_DRIVER error, got %v", err)
		}
	})
}

func TestLoadYAMLOverlayDoesNotOverrideEnv(t *testing.T) {
	setRequiredEnv(t)
	unsetForTest(t, "LATE_THRESHOLD")
	unsetForTest(t, "CORS_ALLOWED_ORIGINS")
	t.Setenv("TOKEN_ROTATION_WINDOW", "45s")

	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := "late_threshold: 10m\nTOKEN_ROTATION_WINDOW: 90s\ncors_allowed_origins:\n  - https://a.example\n  - https://b.example\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LateThreshold != 10*time.Minute {
		t.Fatalf("late threshold=%s want 10m from yaml", cfg.LateThreshold)
	}
	if cfg.TokenRotationWindow != 45*time.Second {
		t.Fatalf("rotation window=%s want env value 45s", cfg.TokenRotationWindow)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected cors origins: %v", cfg.CORSOrigins)
	}
}

func TestFixedZoneNames(t *testing.T) {
	cases := map[time.Duration]string{
		0:                            "UTC",
		8 * time.Hour:                "UTC+8",
		-5 * time.Hour:               "UTC-5",
		5*time.Hour + 30*time.Minute: "UTC+5:30",
	}
	for offset, want := range cases {
		if got := FixedZone(offset).String(); got != want {
			t.Fatalf("FixedZone(%s)=%q want %q", offset, got, want)
		}
	}
}
