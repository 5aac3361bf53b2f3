package service

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/qr-attendance-service/internal/config"
	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
	"github.com/sandeepkv93/qr-attendance-service/internal/repository"
	"github.com/sandeepkv93/qr-attendance-service/internal/security"
)

const (
	teacherA = "teacher-a"
	teacherB = "teacher-b"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	db       *gorm.DB
	clock    *fakeClock
	rejected *InMemoryRejectedTokenStore
	sessions *SessionService
	checkins *CheckInService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.Session{}, &domain.AttendanceRecord{}))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	clock := &fakeClock{now: time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC)}
	rejected := NewInMemoryRejectedTokenStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sessions := NewSessionService(
		repository.NewSessionRepository(db),
		repository.NewAttendanceRepository(db),
		security.NewRandomTokenGenerator(),
		security.NewTokenHasher("test-pepper-0123456789"),
		rejected,
		clock,
		logger,
		SessionServiceOptions{
			RotationWindow:   60 * time.Second,
			DefaultTTL:       210 * 24 * time.Hour,
			PublicBaseURL:    "https://attend.example.edu/",
			RejectedTokenTTL: time.Minute,
		},
	)
	checkins := NewCheckInService(sessions, repository.NewAttendanceRepository(db), clock, logger, CheckInServiceOptions{
		LateThreshold: 15 * time.Minute,
		DayZone:       config.FixedZone(8 * time.Hour),
	})
	return &fixture{db: db, clock: clock, rejected: rejected, sessions: sessions, checkins: checkins}
}

func requireTokenInvariant(t *testing.T, s *domain.Session) {
	t.Helper()
	require.Equal(t, s.IsActive, s.HasToken(), "token present iff active: %+v", s)
	require.Equal(t, s.IsActive, s.TokenExpiresAt != nil, "token deadline present iff active: %+v", s)
}
