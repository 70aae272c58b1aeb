package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config governs whether cycle spans are exported.
type Config struct {
	Enabled     bool
	ServiceName string
}

// ConfigFromEnv reads TRACING_ENABLED and TRACING_SERVICE_NAME.
func ConfigFromEnv(getenv func(string) string) Config {
	service := getenv("TRACING_SERVICE_NAME")
	if service == "" {
		service = "flight-state-relay"
	}
	return Config{
		Enabled:     strings.EqualFold(getenv("TRACING_ENABLED"), "true"),
		ServiceName: service,
	}
}

// Setup installs a global tracer provider that pretty-prints spans to w
// (stdout when nil). When tracing is disabled the global noop provider is
// left in place. The returned function flushes and stops the provider.
func Setup(cfg Config, w io.Writer) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if w == nil {
		w = os.Stdout
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("tracing: stdout exporter: %w", err)
	}
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
