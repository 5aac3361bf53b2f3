package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var ErrInvalidConfig = errors.New("validate config")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Env           string
	HTTPAddr      string
	PublicBaseURL string
	CORSOrigins   []string

	DBDriver       string
	DatabaseURL    string
	DBMaxOpenConns int

	JWTIssuer       string
	JWTAudience     string
	JWTAccessSecret string
	DevTokenTTL     time.Duration

	TokenHashPepper      string
	TokenRotationWindow  time.Duration
	LateThreshold        time.Duration
	SessionDefaultTTL    time.Duration
	DayKeyUTCOffset      time.Duration
	SessionSweepInterval time.Duration
	RejectedTokenTTL     time.Duration

	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	RateLimitFailureMode string
	CheckInRateLimitRPM  int
	APIRateLimitRPM      int

	LogLevel  string
	LogFormat string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSampleRatio      float64

	ReadinessProbeTimeout        time.Duration
	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
}

// DayKeyLocation is the fixed institutional zone used for duplicate check-in
// day keys. It never depends on the caller.
func (c *Config) DayKeyLocation() *time.Location {
	return FixedZone(c.DayKeyUTCOffset)
}

func FixedZone(offset time.Duration) *time.Location {
	if offset == 0 {
		return time.UTC
	}
	sign := "+"
	abs := offset
	if offset < 0 {
		sign = "-"
		abs = -offset
	}
	h := int(abs / time.Hour)
	m := int((abs % time.Hour) / time.Minute)
	name := fmt.Sprintf("UTC%s%d", sign, h)
	if m != 0 {
		name = fmt.Sprintf("UTC%s%d:%02d", sign, h, m)
	}
	return time.FixedZone(name, int(offset/time.Second))
}

func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver))
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if len(c.JWTAccessSecret) < 32 {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be at least 32 bytes"))
	}
	if len(c.TokenHashPepper) < 16 {
		errs = append(errs, errors.New("TOKEN_HASH_PEPPER must be at least 16 bytes"))
	}
	if u, err := url.Parse(c.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL must be an absolute URL, got %q", c.PublicBaseURL))
	}
	if c.TokenRotationWindow <= 0 {
		errs = append(errs, errors.New("TOKEN_ROTATION_WINDOW must be positive"))
	}
	if c.LateThreshold < 0 {
		errs = append(errs, errors.New("LATE_THRESHOLD must not be negative"))
	}
	if c.SessionDefaultTTL <= 0 {
		errs = append(errs, errors.New("SESSION_DEFAULT_TTL must be positive"))
	}
	if c.DayKeyUTCOffset < -14*time.Hour || c.DayKeyUTCOffset > 14*time.Hour {
		errs = append(errs, fmt.Errorf("DAY_KEY_UTC_OFFSET out of range: %s", c.DayKeyUTCOffset))
	}
	if c.SessionSweepInterval < 0 {
		errs = append(errs, errors.New("SESSION_SWEEP_INTERVAL must not be negative"))
	}
	if c.RejectedTokenTTL < 0 {
		errs = append(errs, errors.New("REJECTED_TOKEN_CACHE_TTL must not be negative"))
	}
	switch c.RateLimitFailureMode {
	case "fail_open", "fail_closed":
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_FAILURE_MODE must be fail_open or fail_closed, got %q", c.RateLimitFailureMode))
	}
	if c.OTELTraceSampleRatio < 0 || c.OTELTraceSampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACE_SAMPLE_RATIO must be within [0,1]"))
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, errors.New("OTEL_EXPORTER_OTLP_ENDPOINT is required when otel export is enabled"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
