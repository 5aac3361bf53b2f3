package config

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	errEnvFile    = errors.New("load env file")
	errConfigFile = errors.New("load config file")

	loadCounterOnce sync.Once
	loadCounter     metric.Int64Counter
)

// recordLoad counts one Load call. failed_key is only set for parse errors
// so the attribute set stays bounded by the key list.
func recordLoad(ctx context.Context, profile string, err error) {
	loadCounterOnce.Do(func() {
		c, cerr := otel.Meter("qr-attendance-service/config").Int64Counter(
			"config.load.events",
			metric.WithDescription("Configuration load attempts by outcome"),
		)
		if cerr == nil {
			loadCounter = c
		}
	})
	if loadCounter == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	attrs := []attribute.KeyValue{
		attribute.String("profile", profileLabel(profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", loadErrorClass(err)),
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		attrs = append(attrs, attribute.String("failed_key", pe.Key))
	}
	loadCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func profileLabel(profile string) string {
	if v := strings.ToLower(strings.TrimSpace(profile)); v != "" {
		return v
	}
	return "unset"
}

func loadErrorClass(err error) string {
	var pe *ParseError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidConfig):
		return "validation"
	case errors.As(err, &pe):
		return "parse"
	case errors.Is(err, errEnvFile):
		return "env_file"
	case errors.Is(err, errConfigFile):
		return "config_file"
	default:
		return "other"
	}
}
