package di

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"

	"github.com/sandeepkv93/qr-attendance-service/internal/app"
	"github.com/sandeepkv93/qr-attendance-service/internal/config"
	"github.com/sandeepkv93/qr-attendance-service/internal/database"
	"github.com/sandeepkv93/qr-attendance-service/internal/health"
	"github.com/sandeepkv93/qr-attendance-service/internal/http/handler"
	"github.com/sandeepkv93/qr-attendance-service/internal/http/middleware"
	"github.com/sandeepkv93/qr-attendance-service/internal/http/router"
	"github.com/sandeepkv93/qr-attendance-service/internal/observability"
	"github.com/sandeepkv93/qr-attendance-service/internal/qrcode"
	"github.com/sandeepkv93/qr-attendance-service/internal/repository"
	"github.com/sandeepkv93/qr-attendance-service/internal/security"
	"github.com/sandeepkv93/qr-attendance-service/internal/service"
)

// Services is the core without an HTTP surface, used by the operator
// commands (migrate, sweep, display).
type Services struct {
	Config   *config.Config
	Logger   *slog.Logger
	Runtime  *observability.Runtime
	DB       *gorm.DB
	Redis    redis.UniversalClient
	Sessions *service.SessionService
	CheckIns *service.CheckInService
	JWT      *security.JWTManager
}

func (s *Services) Close(ctx context.Context) error {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		errs = append(errs, database.Close(s.DB))
	}
	errs = append(errs, s.Runtime.Shutdown(ctx))
	return errors.Join(errs...)
}

var infraSet = wire.NewSet(
	provideLogProvider,
	provideLogger,
	provideRuntime,
	provideDB,
	provideRedisClient,
)

var coreSet = wire.NewSet(
	repository.NewSessionRepository,
	repository.NewAttendanceRepository,
	provideTokenGenerator,
	provideTokenHasher,
	provideRejectedTokenStore,
	provideClock,
	provideSessionService,
	provideCheckInService,
	provideJWTManager,
)

var httpSet = wire.NewSet(
	provideEncoder,
	provideSessionHandler,
	provideCheckInHandler,
	provideGlobalRateLimiter,
	provideCheckInRateLimiter,
	provideReadiness,
	provideRouter,
	provideHTTPServer,
	provideApp,
)

func provideLogProvider(ctx context.Context, cfg *config.Config) (*sdklog.LoggerProvider, error) {
	return observability.InitLogs(ctx, cfg)
}

func provideLogger(cfg *config.Config, w io.Writer, logs *sdklog.LoggerProvider) *slog.Logger {
	logger := observability.NewLogger(cfg, w, logs)
	slog.SetDefault(logger)
	return logger
}

func provideRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, logs *sdklog.LoggerProvider) (*observability.Runtime, error) {
	return observability.InitRuntime(ctx, cfg, logger, logs)
}

func provideDB(cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	return database.Open(cfg, logger)
}

// provideRedisClient returns nil when REDIS_ADDR is unset; every consumer
// falls back to its process-local variant.
func provideRedisClient(cfg *config.Config) redis.UniversalClient {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func provideTokenGenerator() security.TokenGenerator {
	return security.NewRandomTokenGenerator()
}

func provideTokenHasher(cfg *config.Config) *security.TokenHasher {
	return security.NewTokenHasher(cfg.TokenHashPepper)
}

func provideRejectedTokenStore(cfg *config.Config, client redis.UniversalClient) service.RejectedTokenStore {
	switch {
	case cfg.RejectedTokenTTL <= 0:
		return service.NewNoopRejectedTokenStore()
	case client != nil:
		return service.NewRedisRejectedTokenStore(client, "rejected_token")
	default:
		return service.NewInMemoryRejectedTokenStore()
	}
}

func provideClock() service.Clock {
	return service.SystemClock{}
}

func provideSessionService(
	cfg *config.Config,
	sessions repository.SessionRepository,
	attendance repository.AttendanceRepository,
	tokens security.TokenGenerator,
	hasher *security.TokenHasher,
	rejected service.RejectedTokenStore,
	clock service.Clock,
	logger *slog.Logger,
) *service.SessionService {
	return service.NewSessionService(sessions, attendance, tokens, hasher, rejected, clock, logger, service.SessionServiceOptions{
		RotationWindow:   cfg.TokenRotationWindow,
		DefaultTTL:       cfg.SessionDefaultTTL,
		PublicBaseURL:    cfg.PublicBaseURL,
		RejectedTokenTTL: cfg.RejectedTokenTTL,
	})
}

func provideCheckInService(
	cfg *config.Config,
	sessions *service.SessionService,
	ledger repository.AttendanceRepository,
	clock service.Clock,
	logger *slog.Logger,
) *service.CheckInService {
	return service.NewCheckInService(sessions, ledger, clock, logger, service.CheckInServiceOptions{
		LateThreshold: cfg.LateThreshold,
		DayZone:       cfg.DayKeyLocation(),
	})
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret)
}

func provideEncoder() qrcode.Encoder {
	return qrcode.NewEncoder()
}

func provideSessionHandler(sessions *service.SessionService, encoder qrcode.Encoder) *handler.SessionHandler {
	return handler.NewSessionHandler(sessions, encoder)
}

func provideCheckInHandler(checkins *service.CheckInService, clock service.Clock) *handler.CheckInHandler {
	return handler.NewCheckInHandler(checkins, clock)
}

func provideGlobalRateLimiter(cfg *config.Config, client redis.UniversalClient) router.GlobalRateLimiterFunc {
	if client == nil {
		return middleware.NewRateLimiter(cfg.APIRateLimitRPM, time.Minute, "api", nil).Middleware()
	}
	limiter := middleware.NewRedisFixedWindowLimiter(client, "rl:api")
	return middleware.NewDistributedRateLimiter(limiter, cfg.APIRateLimitRPM, time.Minute, middleware.FailureMode(cfg.RateLimitFailureMode), "api", nil).Middleware()
}

func provideCheckInRateLimiter(cfg *config.Config, client redis.UniversalClient) router.CheckInRateLimiterFunc {
	if client == nil {
		return middleware.NewRateLimiter(cfg.CheckInRateLimitRPM, time.Minute, "checkin", middleware.SubjectOrIPKey).Middleware()
	}
	limiter := middleware.NewRedisFixedWindowLimiter(client, "rl:checkin")
	return middleware.NewDistributedRateLimiter(limiter, cfg.CheckInRateLimitRPM, time.Minute, middleware.FailureMode(cfg.RateLimitFailureMode), "checkin", middleware.SubjectOrIPKey).Middleware()
}

func provideReadiness(cfg *config.Config, db *gorm.DB, client redis.UniversalClient) *health.ProbeRunner {
	checkers := []health.Checker{health.DBChecker{DB: db}}
	if client != nil {
		checkers = append(checkers, health.RedisChecker{Client: client})
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, 2*time.Second, checkers...)
}

func provideRouter(
	cfg *config.Config,
	logger *slog.Logger,
	sessions *handler.SessionHandler,
	checkins *handler.CheckInHandler,
	jwtMgr *security.JWTManager,
	global router.GlobalRateLimiterFunc,
	checkinLimiter router.CheckInRateLimiterFunc,
	readiness *health.ProbeRunner,
) http.Handler {
	return router.NewRouter(router.Dependencies{
		SessionHandler:      sessions,
		CheckInHandler:      checkins,
		JWTManager:          jwtMgr,
		Logger:              logger,
		CORSOrigins:         cfg.CORSOrigins,
		APIRateLimitRPM:     cfg.APIRateLimitRPM,
		CheckInRateLimitRPM: cfg.CheckInRateLimitRPM,
		GlobalRateLimiter:   global,
		CheckInRateLimiter:  checkinLimiter,
		Readiness:           readiness,
		EnableOTelHTTP:      cfg.OTELTracingEnabled || cfg.OTELMetricsEnabled,
	})
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	client redis.UniversalClient,
	readiness *health.ProbeRunner,
	sessions *service.SessionService,
) *app.App {
	stop := app.StartSweepLoop(sessions, cfg.SessionSweepInterval, logger)
	return app.New(cfg, logger, server, runtime, db, client, readiness, stop)
}

func provideServices(
	cfg *config.Config,
	logger *slog.Logger,
	runtime *observability.Runtime,
	db *gorm.DB,
	client redis.UniversalClient,
	sessions *service.SessionService,
	checkins *service.CheckInService,
	jwtMgr *security.JWTManager,
) *Services {
	return &Services{
		Config:   cfg,
		Logger:   logger,
		Runtime:  runtime,
		DB:       db,
		Redis:    client,
		Sessions: sessions,
		CheckIns: checkins,
		JWT:      jwtMgr,
	}
}
