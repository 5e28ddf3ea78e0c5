package interceptors

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/stats"
)

func TestTracingHandlerRecordsServerSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	handler := NewTracingHandler(TracingOptions{TracerProvider: tp})

	ctx := handler.TagRPC(context.Background(), &stats.RPCTagInfo{FullMethodName: "/autodoc.v1.Catalog/List"})
	handler.HandleRPC(ctx, &stats.End{})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one ended span, got %d", len(spans))
	}
	if spans[0].Name() != "autodoc.v1.Catalog/List" {
		t.Fatalf("unexpected span name %q", spans[0].Name())
	}
}

func TestTracingHandlerSkipsUntracedMethods(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	handler := NewTracingHandler(TracingOptions{
		TracerProvider:  tp,
		UntracedMethods: []string{"/grpc.health.v1.Health/Check"},
	})

	ctx := handler.TagRPC(context.Background(), &stats.RPCTagInfo{FullMethodName: "/grpc.health.v1.Health/Check"})
	handler.HandleRPC(ctx, &stats.End{})

	if spans := recorder.Ended(); len(spans) != 0 {
		t.Fatalf("expected health checks to be untraced, got %d spans", len(spans))
	}
}

type mockServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (m *mockServerStream) Context() context.Context {
	return m.ctx
}
