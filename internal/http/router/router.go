package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
	"github.com/sandeepkv93/qr-attendance-service/internal/health"
	"github.com/sandeepkv93/qr-attendance-service/internal/http/handler"
	"github.com/sandeepkv93/qr-attendance-service/internal/http/middleware"
	"github.com/sandeepkv93/qr-attendance-service/internal/http/response"
	"github.com/sandeepkv93/qr-attendance-service/internal/security"
)

type Dependencies struct {
	SessionHandler      *handler.SessionHandler
	CheckInHandler      *handler.CheckInHandler
	JWTManager          *security.JWTManager
	Logger              *slog.Logger
	CORSOrigins         []string
	APIRateLimitRPM     int
	CheckInRateLimitRPM int
	GlobalRateLimiter   GlobalRateLimiterFunc
	CheckInRateLimiter  CheckInRateLimiterFunc
	Readiness           *health.ProbeRunner
	EnableOTelHTTP      bool
}

type GlobalRateLimiterFunc func(http.Handler) http.Handler
type CheckInRateLimiterFunc func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger(dep.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api", nil).Middleware())
	}

	checkInLimiter := dep.CheckInRateLimiter
	if checkInLimiter == nil {
		checkInLimiter = middleware.NewRateLimiter(dep.CheckInRateLimitRPM, time.Minute, "checkin", middleware.SubjectOrIPKey).Middleware()
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(dep.JWTManager))

		r.Route("/sessions", func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleTeacher))
			r.Post("/", dep.SessionHandler.Create)
			r.Get("/", dep.SessionHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", dep.SessionHandler.Get)
				r.Delete("/", dep.SessionHandler.Delete)
				r.Post("/start", dep.SessionHandler.Start)
				r.Post("/refresh", dep.SessionHandler.Refresh)
				r.Post("/stop", dep.SessionHandler.Stop)
				r.Get("/code.png", dep.SessionHandler.Code)
				r.Get("/attendance", dep.SessionHandler.Attendance)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleStudent))
			r.Use(checkInLimiter)
			r.Get("/checkin/verify", dep.CheckInHandler.Verify)
			r.Post("/checkin", dep.CheckInHandler.CheckIn)
		})
		r.With(middleware.RequireRole(domain.RoleStudent)).Get("/me/attendance", dep.CheckInHandler.MyAttendance)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
