package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Fredcx/ezmenu/internal/config"
)

func keepOTelGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func enabledCfg(name string) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: name,
		SampleRatio: 1.0,
		Environment: "test",
	}
}

func TestSetupTracing_DisabledIsNoOp(t *testing.T) {
	keepOTelGlobals(t)
	prev := otel.GetTracerProvider()

	shutdown, err := SetupTracing(context.Background(), config.OTELConfig{Enabled: false}, "v0")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
	if otel.GetTracerProvider() != prev {
		t.Fatalf("provider replaced while disabled")
	}
}

func TestSetupTracing_InstallsProvider(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		keepOTelGlobals(t)
		cfg := enabledCfg("ezmenu-test")
		cfg.Insecure = insecure

		shutdown, err := SetupTracing(context.Background(), cfg, "v1.0.0")
		if err != nil {
			t.Fatalf("insecure=%v: %v", insecure, err)
		}
		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("insecure=%v: expected sdk provider", insecure)
		}
		_, span := otel.Tracer("services/SessionService").Start(context.Background(), "Send")
		span.End()

		ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		_ = shutdown(ctx)
		cancel()
	}
}

func TestSetupTracing_ResourceCarriesEnvironment(t *testing.T) {
	res, err := newTraceResource(context.Background(), enabledCfg("ezmenu"), "v2")
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	want := map[string]string{
		string(semconv.ServiceNameKey):           "ezmenu",
		string(semconv.ServiceVersionKey):        "v2",
		string(semconv.DeploymentEnvironmentKey): "test",
	}
	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s=%q want %q", k, got[k], v)
		}
	}
}

func TestSetupTracing_ExporterErrorLeavesGlobals(t *testing.T) {
	keepOTelGlobals(t)
	orig := newTraceExporter
	t.Cleanup(func() { newTraceExporter = orig })
	newTraceExporter = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
		return nil, errors.New("exporter down")
	}

	prev := otel.GetTracerProvider()
	if _, err := SetupTracing(context.Background(), enabledCfg("svc"), "v0"); err == nil {
		t.Fatalf("expected error")
	}
	if otel.GetTracerProvider() != prev {
		t.Fatalf("provider changed on failure")
	}
}

func TestSetupTracing_ResourceErrorLeavesGlobals(t *testing.T) {
	keepOTelGlobals(t)
	orig := newTraceResource
	t.Cleanup(func() { newTraceResource = orig })
	newTraceResource = func(context.Context, config.OTELConfig, string) (*resource.Resource, error) {
		return nil, errors.New("bad resource")
	}

	prev := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	if _, err := SetupTracing(context.Background(), enabledCfg("svc"), "v0"); err == nil {
		t.Fatalf("expected error")
	}
	if otel.GetTracerProvider() != prev || otel.GetTextMapPropagator() != prevProp {
		t.Fatalf("globals changed on failure")
	}
}
