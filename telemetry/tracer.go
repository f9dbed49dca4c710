// package telemetry configures OpenTelemetry tracing for the proxy service
package telemetry

import (
	"context"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/DockYard/plausible-proxy/logging"
)

const ServiceName = "plausible-proxy"

// InitTracer registers a global tracer provider exporting spans to w,
// returning the provider shutdown function and error (if any)
func InitTracer(serviceName string, w io.Writer, serviceLogger *logging.ServiceLogger) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	serviceLogger.Info().Str("service", serviceName).Msg("OpenTelemetry initialized")

	return tp.Shutdown, nil
}

// Handler wraps an inbound handler with a server span per request
func Handler(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, ServiceName)
}

// Transport wraps base with a client span per provider call
func Transport(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(base)
}
