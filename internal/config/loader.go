package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from the environment. Values from envFile and
// from the YAML file named by CONFIG_FILE only fill keys the environment
// leaves unset.
func Load(envFile string) (*Config, error) {
	cfg, err := load(envFile)
	recordLoad(context.Background(), os.Getenv("APP_ENV"), err)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := LoadEnvFile(envFile); err != nil {
			return nil, fmt.Errorf("%w: %w", errEnvFile, err)
		}
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := LoadYAMLFile(path); err != nil {
			return nil, fmt.Errorf("%w: %w", errConfigFile, err)
		}
	}

	p := &parser{}
	cfg := &Config{
		Env:           p.str("APP_ENV", "development"),
		HTTPAddr:      p.str("HTTP_ADDR", ":8080"),
		PublicBaseURL: strings.TrimRight(p.str("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		CORSOrigins:   p.list("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		DBDriver:       strings.ToLower(p.str("DB_DRIVER", DriverSQLite)),
		DatabaseURL:    p.str("DATABASE_URL", "file:attendance.db?_busy_timeout=5000"),
		DBMaxOpenConns: p.integer("DB_MAX_OPEN_CONNS", 10),

		JWTIssuer:       p.str("JWT_ISSUER", "qr-attendance"),
		JWTAudience:     p.str("JWT_AUDIENCE", "qr-attendance-api"),
		JWTAccessSecret: p.str("JWT_ACCESS_SECRET", ""),
		DevTokenTTL:     p.duration("DEV_TOKEN_TTL", 12*time.Hour),

		TokenHashPepper:      p.str("TOKEN_HASH_PEPPER", ""),
		TokenRotationWindow:  p.duration("TOKEN_ROTATION_WINDOW", 60*time.Second),
		LateThreshold:        p.duration("LATE_THRESHOLD", 15*time.Minute),
		SessionDefaultTTL:    p.duration("SESSION_DEFAULT_TTL", 210*24*time.Hour),
		DayKeyUTCOffset:      p.duration("DAY_KEY_UTC_OFFSET", 8*time.Hour),
		SessionSweepInterval: p.duration("SESSION_SWEEP_INTERVAL", 0),
		RejectedTokenTTL:     p.duration("REJECTED_TOKEN_CACHE_TTL", 30*time.Second),

		RedisAddr:            p.str("REDIS_ADDR", ""),
		RedisPassword:        p.str("REDIS_PASSWORD", ""),
		RedisDB:              p.integer("REDIS_DB", 0),
		RateLimitFailureMode: strings.ToLower(p.str("RATE_LIMIT_FAILURE_MODE", "fail_open")),
		CheckInRateLimitRPM:  p.integer("CHECKIN_RATE_LIMIT_RPM", 30),
		APIRateLimitRPM:      p.integer("API_RATE_LIMIT_RPM", 600),

		LogLevel:  p.str("LOG_LEVEL", "info"),
		LogFormat: p.str("LOG_FORMAT", "json"),

		OTELServiceName:           p.str("OTEL_SERVICE_NAME", "qr-attendance-service"),
		OTELEnvironment:           p.str("OTEL_ENVIRONMENT", "development"),
		OTELExporterOTLPEndpoint:  p.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELExporterOTLPInsecure:  p.boolean("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:        p.boolean("OTEL_METRICS_ENABLED", false),
		OTELTracingEnabled:        p.boolean("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:           p.boolean("OTEL_LOGS_ENABLED", false),
		OTELMetricsExportInterval: p.duration("OTEL_METRICS_EXPORT_INTERVAL", 15*time.Second),
		OTELTraceSampleRatio:      p.float("OTEL_TRACE_SAMPLE_RATIO", 1),

		ReadinessProbeTimeout:        p.duration("READINESS_PROBE_TIMEOUT", time.Second),
		ShutdownTimeout:              p.duration("SHUTDOWN_TIMEOUT", 20*time.Second),
		ShutdownHTTPDrainTimeout:     p.duration("SHUTDOWN_HTTP_DRAIN_TIMEOUT", 10*time.Second),
		ShutdownObservabilityTimeout: p.duration("SHUTDOWN_OBSERVABILITY_TIMEOUT", 5*time.Second),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadYAMLFile applies a flat KEY: value YAML document as environment
// defaults. Keys already present in the environment win.
func LoadYAMLFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	values := map[string]any{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	for k, v := range values {
		key := strings.ToUpper(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		var s string
		switch tv := v.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(tv))
			for _, item := range tv {
				parts = append(parts, fmt.Sprint(item))
			}
			s = strings.Join(parts, ",")
		default:
			s = fmt.Sprint(tv)
		}
		if err := os.Setenv(key, s); err != nil {
			return err
		}
	}
	return nil
}

// ParseError reports a key whose value does not parse as its type.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.Key, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// parser keeps the first parse error so every key is read in one pass.
type parser struct {
	err error
}

func (p *parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p *parser) list(key string, def []string) []string {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *parser) integer(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(&ParseError{Key: key, Err: err})
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(&ParseError{Key: key, Err: err})
		return def
	}
	return f
}

func (p *parser) boolean(key string, def bool) bool {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(&ParseError{Key: key, Err: err})
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(&ParseError{Key: key, Err: err})
		return def
	}
	return d
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}
