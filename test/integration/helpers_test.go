package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandeepkv93/qr-attendance-service/internal/config"
	"github.com/sandeepkv93/qr-attendance-service/internal/database"
	"github.com/sandeepkv93/qr-attendance-service/internal/di"
	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
	"github.com/sandeepkv93/qr-attendance-service/internal/security"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type attendanceServer struct {
	baseURL string
	client  *http.Client
	jwt     *security.JWTManager
}

func integrationConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:                          "integration",
		HTTPAddr:                     "127.0.0.1:0",
		PublicBaseURL:                "http://attend.test",
		DBDriver:                     config.DriverSQLite,
		DatabaseURL:                  "file:" + filepath.Join(t.TempDir(), "attendance.db") + "?_busy_timeout=5000",
		JWTIssuer:                    "qr-attendance",
		JWTAudience:                  "qr-attendance-api",
		JWTAccessSecret:              "integration-secret-0123456789abcdef",
		TokenHashPepper:              "integration-pepper-0123",
		TokenRotationWindow:          time.Minute,
		LateThreshold:                15 * time.Minute,
		SessionDefaultTTL:            24 * time.Hour,
		DayKeyUTCOffset:              8 * time.Hour,
		RejectedTokenTTL:             time.Minute,
		RateLimitFailureMode:         "fail_open",
		CheckInRateLimitRPM:          10000,
		APIRateLimitRPM:              10000,
		LogLevel:                     "error",
		ReadinessProbeTimeout:        time.Second,
		ShutdownTimeout:              2 * time.Second,
		ShutdownHTTPDrainTimeout:     time.Second,
		ShutdownObservabilityTimeout: time.Second,
	}
}

func newAttendanceServer(t *testing.T, cfg *config.Config) *attendanceServer {
	t.Helper()
	a, err := di.InitializeApp(context.Background(), cfg, io.Discard)
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}
	if err := database.Migrate(a.DB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	srv := httptest.NewServer(a.Server.Handler)
	t.Cleanup(func() {
		srv.Close()
		_ = a.Shutdown(context.Background())
	})
	return &attendanceServer{
		baseURL: srv.URL,
		client:  srv.Client(),
		jwt:     security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret),
	}
}

func (s *attendanceServer) token(t *testing.T, subject string, role domain.Role) string {
	t.Helper()
	tok, err := s.jwt.SignAccessToken(subject, role, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func (s *attendanceServer) doJSON(t *testing.T, method, path, bearer string, body any) (*http.Response, apiEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Errorf("marshal body: %v", err)
			return nil, apiEnvelope{}
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.baseURL+path, reader)
	if err != nil {
		t.Errorf("new request: %v", err)
		return nil, apiEnvelope{}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Errorf("request failed: %v", err)
		return nil, apiEnvelope{}
	}
	defer func() { _ = resp.Body.Close() }()
	var env apiEnvelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp, env
}
