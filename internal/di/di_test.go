package di

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/sandeepkv93/qr-attendance-service/internal/config"
	"github.com/sandeepkv93/qr-attendance-service/internal/database"
	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
	"github.com/sandeepkv93/qr-attendance-service/internal/service"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:                          "test",
		HTTPAddr:                     "127.0.0.1:0",
		PublicBaseURL:                "http://attend.test",
		DBDriver:                     config.DriverSQLite,
		DatabaseURL:                  fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		JWTIssuer:                    "qr-attendance",
		JWTAudience:                  "qr-attendance-api",
		JWTAccessSecret:              "abcdefghijklmnopqrstuvwxyz123456",
		TokenHashPepper:              "di-test-pepper-0123",
		TokenRotationWindow:          time.Minute,
		LateThreshold:                15 * time.Minute,
		SessionDefaultTTL:            24 * time.Hour,
		DayKeyUTCOffset:              8 * time.Hour,
		RejectedTokenTTL:             time.Minute,
		RateLimitFailureMode:         "fail_open",
		CheckInRateLimitRPM:          100,
		APIRateLimitRPM:              100,
		LogLevel:                     "error",
		LogFormat:                    "text",
		OTELServiceName:              "qr-attendance-test",
		ReadinessProbeTimeout:        time.Second,
		ShutdownTimeout:              time.Second,
		ShutdownHTTPDrainTimeout:     time.Second,
		ShutdownObservabilityTimeout: time.Second,
	}
}

func TestInitializeServicesRunsLifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	svc, err := InitializeServices(ctx, cfg, io.Discard)
	if err != nil {
		t.Fatalf("initialize services: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	if err := database.Migrate(svc.DB); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s, err := svc.Sessions.Create(ctx, "teacher-1", service.CreateSessionInput{Subject: "Chemistry"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	issued, err := svc.Sessions.Start(ctx, s.ID, "teacher-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	rec, err := svc.CheckIns.CheckIn(ctx, service.CheckInInput{Token: issued.Token, StudentID: "student-1"})
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	if rec.Status != domain.AttendanceStatusPresent {
		t.Fatalf("expected present, got %s", rec.Status)
	}
}

func TestInitializeAppWithRedisServesAPI(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()

	a, err := InitializeApp(ctx, cfg, io.Discard)
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	if a.Redis == nil {
		t.Fatal("expected redis client when REDIS_ADDR is set")
	}
	if err := database.Migrate(a.DB); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	rr := httptest.NewRecorder()
	a.Server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"redis"`) {
		t.Fatalf("expected redis readiness check, got %s", rr.Body.String())
	}

	token, err := provideJWTManager(cfg).SignAccessToken("teacher-1", domain.RoleTeacher, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"subject":"Physics"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	a.Server.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var env struct {
		Data domain.Session `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Subject != "Physics" || env.Data.State != domain.SessionStateCreated {
		t.Fatalf("unexpected session %+v", env.Data)
	}
	if len(mr.Keys()) == 0 {
		t.Fatal("expected the redis rate limiter to record a window")
	}
}

func TestProvideRejectedTokenStoreVariants(t *testing.T) {
	cfg := testConfig(t)
	if _, ok := provideRejectedTokenStore(cfg, nil).(*service.InMemoryRejectedTokenStore); !ok {
		t.Fatal("expected in-memory store without redis")
	}
	mr := miniredis.RunT(t)
	client := provideRedisClient(&config.Config{RedisAddr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	if _, ok := provideRejectedTokenStore(cfg, client).(*service.RedisRejectedTokenStore); !ok {
		t.Fatal("expected redis store with redis")
	}
	cfg.RejectedTokenTTL = 0
	if _, ok := provideRejectedTokenStore(cfg, client).(*service.NoopRejectedTokenStore); !ok {
		t.Fatal("expected noop store when the cache is disabled")
	}
}
